package brewflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/BrewFlow/internal/adapters/mqtt"
	"github.com/ghalamif/BrewFlow/internal/adapters/observability"
	"github.com/ghalamif/BrewFlow/internal/adapters/queue"
	"github.com/ghalamif/BrewFlow/internal/adapters/sink"
	"github.com/ghalamif/BrewFlow/internal/adapters/web"
	"github.com/ghalamif/BrewFlow/internal/app/connection"
	"github.com/ghalamif/BrewFlow/internal/app/pipeline"
	"github.com/ghalamif/BrewFlow/internal/chart"
	"github.com/ghalamif/BrewFlow/internal/ports"
	"github.com/ghalamif/BrewFlow/internal/session"
)

// ErrAlreadyStarted is returned by Start on a dashboard that is running.
var ErrAlreadyStarted = errors.New("brewflow: dashboard already started")

// DashboardOption customizes the dependencies used by Dashboard.
type DashboardOption func(*dashboardOverrides)

type dashboardOverrides struct {
	transport     Transport
	sink          SessionSink
	observability Observability
	clock         clock.Clock
	logger        *slog.Logger
	servers       *bool
	err           error
}

// WithTransport replaces the MQTT transport (replay files, in-process sources, tests).
func WithTransport(tr Transport) DashboardOption {
	return func(o *dashboardOverrides) {
		o.transport = tr
	}
}

// WithSessionSink archives finalized sessions to s instead of PostgreSQL.
func WithSessionSink(s SessionSink) DashboardOption {
	return func(o *dashboardOverrides) {
		o.sink = s
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) DashboardOption {
	return func(o *dashboardOverrides) {
		o.observability = obs
	}
}

// WithClock drives the reconnect timer from c.
func WithClock(c clock.Clock) DashboardOption {
	return func(o *dashboardOverrides) {
		o.clock = c
	}
}

// WithLogger replaces the logger built from the log config section.
func WithLogger(l *slog.Logger) DashboardOption {
	return func(o *dashboardOverrides) {
		o.logger = l
	}
}

// WithServers toggles the metrics and dashboard HTTP servers. They are on by default.
func WithServers(enabled bool) DashboardOption {
	return func(o *dashboardOverrides) {
		o.servers = &enabled
	}
}

// Dashboard wires transport → connection manager → ingestor → session store and
// exposes the renderer queries plus the HTTP surfaces.
type Dashboard struct {
	cfg       *Config
	logger    *slog.Logger
	obs       ports.Observability
	registry  *prometheus.Registry
	store     *session.Store
	renderer  *chart.Renderer
	transport ports.Transport
	manager   *connection.Manager
	archive   *queue.MemQueue[*session.BrewSession]
	sink      ports.SessionSink
	db        *sql.DB
	web       *web.Server
	servers   bool

	mu         sync.Mutex
	started    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	metricsSrv *http.Server
	webSrv     *http.Server
}

// NewDashboard validates cfg and bootstraps the default adapters (paho MQTT,
// Prometheus observability, optional PostgreSQL archive). Any of them can be
// replaced with a DashboardOption.
func NewDashboard(cfg *Config, opts ...DashboardOption) (*Dashboard, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var overrides dashboardOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}
	if overrides.err != nil {
		return nil, overrides.err
	}

	logger := overrides.logger
	if logger == nil {
		var err error
		logger, err = observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, err
		}
	}

	d := &Dashboard{
		cfg:     cfg,
		logger:  logger,
		store:   session.NewStore(),
		servers: overrides.servers == nil || *overrides.servers,
	}

	d.obs = overrides.observability
	if d.obs == nil {
		d.registry = prometheus.NewRegistry()
		d.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		d.obs = observability.NewPromObs(d.registry, logger)
	}

	builder, err := chart.NewPathBuilder(
		chart.Surface{Width: cfg.Chart.Width, Height: cfg.Chart.Height},
		cfg.Chart.XStepsPerScreen,
		chart.WithClampOverflow(cfg.Chart.ClampOverflow),
	)
	if err != nil {
		return nil, err
	}
	d.renderer, err = chart.NewRenderer(builder, cfg.Chart.WindowCap, cfg.Chart.MetricCeilings())
	if err != nil {
		return nil, err
	}

	d.sink = overrides.sink
	if d.sink == nil && cfg.Archive.Enabled() {
		d.db, err = sink.Open(cfg.Archive.ConnString)
		if err != nil {
			return nil, err
		}
		d.sink = sink.NewPostgresSink(d.db, cfg.Archive.Table)
	}

	var archive ports.Queue[*session.BrewSession]
	if d.sink != nil {
		d.archive = queue.NewMemQueue[*session.BrewSession](cfg.Archive.Policy.MaxQueueLen, false)
		archive = d.archive
	}
	ingestor := pipeline.NewIngestor(d.store, archive, d.obs)

	d.transport = overrides.transport
	if d.transport == nil {
		d.transport = mqtt.New()
	}

	d.manager, err = connection.New(cfg.Broker, d.transport, ingestor,
		connection.WithClock(overrides.clock),
		connection.WithObservability(d.obs),
		connection.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	d.web = web.NewServer(d, d.renderer,
		web.WithPushInterval(cfg.Dashboard.PushInterval),
		web.WithLogger(logger),
	)
	return d, nil
}

// Start connects to the broker and launches the archive pipeline and HTTP
// servers. It returns immediately; call Run to block on a context instead.
func (d *Dashboard) Start(ctx context.Context) error {
	if d == nil {
		return fmt.Errorf("dashboard is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return ErrAlreadyStarted
	}

	if pg, ok := d.sink.(*sink.PostgresSink); ok {
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("archive schema: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.manager.Start(runCtx); err != nil {
		cancel()
		return err
	}
	d.cancel = cancel
	d.started = true

	if d.sink != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			pipeline.RunArchivePipeline(runCtx, d.archive, d.sink, d.cfg.Archive.Policy, d.obs)
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.web.Run(runCtx)
	}()

	if d.servers {
		d.startServers()
	}
	d.logger.Info("dashboard started",
		"broker", d.cfg.Broker.Endpoint,
		"topic", d.cfg.Broker.Topic,
		"archive", d.sink != nil)
	return nil
}

// Run starts the dashboard and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (d *Dashboard) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.Shutdown(shutdownCtx)
}

// Shutdown stops the connection manager, HTTP servers, archive pipeline and DB connection.
func (d *Dashboard) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	cancel := d.cancel
	metricsSrv, webSrv := d.metricsSrv, d.webSrv
	d.cancel, d.metricsSrv, d.webSrv = nil, nil, nil
	d.mu.Unlock()

	var errs []error

	d.manager.Stop()
	if cancel != nil {
		cancel()
	}

	for _, srv := range []*http.Server{metricsSrv, webSrv} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	if d.db != nil {
		if err := d.db.Close(); err != nil {
			errs = append(errs, err)
		}
		d.db = nil
	}

	return errors.Join(errs...)
}

// LatestSession returns the newest session snapshot. It is never nil.
func (d *Dashboard) LatestSession() *BrewSession {
	return d.store.Latest()
}

// Series returns the most recent cap values of m from the latest session. A
// non-positive cap uses the configured window cap.
func (d *Dashboard) Series(m Metric, cap int) []float64 {
	return d.renderer.Series(d.store.Latest(), m, cap)
}

// Chart builds the geometry of m for the latest session.
func (d *Dashboard) Chart(m Metric) (Geometry, error) {
	return d.renderer.Chart(d.store.Latest(), m)
}

// Charts builds the geometry of every metric for the latest session.
func (d *Dashboard) Charts() map[Metric]Geometry {
	return d.renderer.Charts(d.store.Latest())
}

// ConnectionState reports the broker connection state.
func (d *Dashboard) ConnectionState() ConnectionState {
	return d.manager.State()
}

// Subscribe delivers session snapshots as they are published. Slow readers
// skip intermediate snapshots. Call cancel to stop.
func (d *Dashboard) Subscribe(buffer int) (<-chan *BrewSession, func()) {
	return d.store.Subscribe(buffer)
}

// Publish sends payload to topic, buffering it while disconnected.
func (d *Dashboard) Publish(ctx context.Context, topic string, payload []byte) error {
	return d.manager.Publish(ctx, topic, payload)
}

// Handler exposes the dashboard JSON/websocket API for embedding in another server.
func (d *Dashboard) Handler() http.Handler {
	return d.web.Handler()
}

// Config returns the effective configuration.
func (d *Dashboard) Config() *Config {
	return d.cfg
}

func (d *Dashboard) startServers() {
	mux := http.NewServeMux()
	if d.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{Registry: d.registry}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	d.metricsSrv = &http.Server{Addr: d.cfg.Metrics.Addr, Handler: mux}
	d.webSrv = &http.Server{Addr: d.cfg.Dashboard.Addr, Handler: d.web.Handler()}

	for name, srv := range map[string]*http.Server{"metrics": d.metricsSrv, "dashboard": d.webSrv} {
		go func(name string, srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.logger.Error("http server exited", "server", name, "addr", srv.Addr, "error", err)
			}
		}(name, srv)
	}
}
