package brewflow

import (
	"context"
	"fmt"
	"time"

	"github.com/ghalamif/BrewFlow/internal/adapters/replay"
)

// Flow is a convenience builder that lets callers say Conf → StreamIN → StreamOUT
// without touching the underlying hexagonal wiring.
type Flow struct {
	cfg  *Config
	opts []DashboardOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures the transport side of the dashboard.
type StreamInOption func(*Flow)

// StreamOutOption configures the archive and observability side of the dashboard.
type StreamOutOption func(*Flow)

// Conf loads YAML from disk, applies FlowOption values, and returns a Flow builder.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the underlying configuration so callers can tweak it before building.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw DashboardOption values for advanced scenarios.
func (f *Flow) Options(opts ...DashboardOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN records transport-side overrides.
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT records sink-side overrides and builds a Dashboard ready to run.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Dashboard, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewDashboard(f.cfg, f.opts...)
}

// Run is a shortcut for StreamOUT + Dashboard.Run.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	d, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}

// WithFlowOptions appends DashboardOption values during Conf.
func WithFlowOptions(opts ...DashboardOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInTransport injects a custom transport (ExternalSource, another broker client).
func StreamInTransport(tr Transport) StreamInOption {
	return func(f *Flow) {
		if f != nil && tr != nil {
			f.appendOptions(WithTransport(tr))
		}
	}
}

// StreamInReplay plays a recorded frame file instead of connecting to a broker.
// A non-positive interval uses the replay default.
func StreamInReplay(path string, interval time.Duration, loop bool) StreamInOption {
	return func(f *Flow) {
		if f == nil {
			return
		}
		var opts []replay.Option
		if interval > 0 {
			opts = append(opts, replay.WithInterval(interval))
		}
		if loop {
			opts = append(opts, replay.WithLoop(true))
		}
		tr, err := replay.Load(path, opts...)
		if err != nil {
			f.appendOptions(func(o *dashboardOverrides) { o.err = err })
			return
		}
		f.appendOptions(WithTransport(tr))
	}
}

// StreamInObservability overrides the default Prometheus-based observability stack.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutSink injects a custom session archive.
func StreamOutSink(s SessionSink) StreamOutOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.appendOptions(WithSessionSink(s))
		}
	}
}

// StreamOutObservability replaces the default observability backend.
func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutCallback archives finalized sessions through a callback function.
func StreamOutCallback(name string, fn SessionBatchSink) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithSessionSink(NewCallbackSink(name, fn)))
		}
	}
}

func (f *Flow) appendOptions(opts ...DashboardOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
