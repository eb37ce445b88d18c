package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/BrewFlow/pkg/brewflow"
)

// Replays a recorded shot and prints every finalized session.
func main() {
	flow, err := brewflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(_ context.Context, sessions []*brewflow.BrewSession) error {
		for _, s := range sessions {
			peak, _ := s.Max(brewflow.MetricPressure)
			final, _ := s.Last()
			fmt.Printf("session=%d samples=%d peak_pressure=%.1f bar final_weight=%.1f g\n",
				s.ID(), s.Len(), peak, final.WeightGrams)
		}
		return nil
	}

	err = flow.
		StreamIN(brewflow.StreamInReplay("../../internal/frame/testdata/brew_shot.txt", 0, true)).
		Run(ctx, brewflow.StreamOutCallback("stdout", callback))
	if err != nil && err != context.Canceled {
		log.Fatalf("dashboard error: %v", err)
	}
}
