package brewflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ghalamif/BrewFlow/internal/adapters/observability"
)

func TestConfFromConfigAndStreamBuilder(t *testing.T) {
	cfg := testConfig()

	flow, err := ConfFromConfig(cfg, WithFlowOptions(WithServers(false), WithLogger(observability.Discard())))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}
	if flow.Config() != cfg {
		t.Fatalf("expected Config to be returned verbatim")
	}

	src := NewExternalSource()
	sink := NewCallbackSink("cb", func(context.Context, []*BrewSession) error { return nil })

	d, err := flow.
		StreamIN(
			StreamInTransport(src),
			StreamInObservability(observability.Nop{}),
		).
		StreamOUT(
			StreamOutSink(sink),
			StreamOutObservability(observability.Nop{}),
		)
	if err != nil {
		t.Fatalf("StreamOUT returned error: %v", err)
	}
	if d.transport != src {
		t.Fatalf("expected custom transport to be wired")
	}
	if d.sink != sink {
		t.Fatalf("expected custom sink to be wired")
	}
	if d.servers {
		t.Fatalf("expected servers to be disabled")
	}
}

func TestFlowRunReplaysRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.txt")
	recording := "# one short shot\n" +
		"preinfusion, warming, 0, 1, 40, 0, 95\n" +
		"brewing, pull, 3, 9, 60, 1, 93\n" +
		"preinfusion, done, 0, 1, 40, 0, 94\n"
	if err := os.WriteFile(path, []byte(recording), 0o600); err != nil {
		t.Fatalf("write recording: %v", err)
	}

	var archived []*BrewSession
	done := make(chan struct{})
	flow, err := ConfFromConfig(testConfig(), WithFlowOptions(WithServers(false), WithLogger(observability.Discard())))
	if err != nil {
		t.Fatalf("ConfFromConfig returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = flow.StreamIN(
		StreamInReplay(path, time.Millisecond, false),
		StreamInObservability(observability.Nop{}),
	).Run(ctx,
		StreamOutCallback("collect", func(_ context.Context, sessions []*BrewSession) error {
			archived = append(archived, sessions...)
			close(done)
			cancel()
			return nil
		}),
	)
	if err != nil && err != context.Canceled {
		t.Fatalf("Run returned unexpected error: %v", err)
	}

	select {
	case <-done:
	default:
		t.Fatalf("expected a finalized session to be archived")
	}
	if len(archived) != 1 || archived[0].Len() != 2 {
		t.Fatalf("unexpected archived sessions %+v", archived)
	}
}
