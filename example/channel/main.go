package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/BrewFlow"
)

// Feeds frames from an in-process source and fans out live snapshots and
// finalized sessions to separate workers.
func main() {
	cfg, err := brewflow.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src := brewflow.NewExternalSource()
	sink, sessions, closeSessions := brewflow.NewChannelSink("fanout", 8)
	defer closeSessions()

	d, err := brewflow.NewDashboard(cfg,
		brewflow.WithTransport(src),
		brewflow.WithSessionSink(sink),
		brewflow.WithServers(false),
	)
	if err != nil {
		log.Fatalf("build dashboard: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		log.Fatalf("start dashboard: %v", err)
	}

	snapshots, unsubscribe := d.Subscribe(1)
	defer unsubscribe()

	go sessionWorker(sessions)
	go snapshotWorker(snapshots)
	go feed(ctx, src)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func feed(ctx context.Context, src *brewflow.ExternalSource) {
	shot := []string{
		"preinfusion, warming, 0, 1.0, 40, 0, 95",
		"brewing, pull, 4, 9.0, 60, 1.6, 93",
		"brewing, pull, 12, 9.2, 60, 2.1, 92",
		"brewing, pull, 30, 8.8, 55, 1.9, 92",
	}
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		if err := src.Send(shot[i%len(shot)]); err != nil {
			log.Printf("send: %v", err)
		}
	}
}

func snapshotWorker(snapshots <-chan *brewflow.BrewSession) {
	for s := range snapshots {
		fmt.Printf("[live] session=%d samples=%d %s\n", s.ID(), s.Len(), s.Description())
	}
}

func sessionWorker(sessions <-chan []*brewflow.BrewSession) {
	for batch := range sessions {
		for _, s := range batch {
			fmt.Printf("[done] session=%d samples=%d\n", s.ID(), s.Len())
		}
	}
}
