// Package web serves the dashboard's read-only query surface over HTTP and
// pushes chart geometry to websocket clients.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ghalamif/BrewFlow/internal/app/connection"
	"github.com/ghalamif/BrewFlow/internal/chart"
	"github.com/ghalamif/BrewFlow/internal/domain"
	"github.com/ghalamif/BrewFlow/internal/session"
)

// Source is what the server reads. Every method must be safe from any goroutine.
type Source interface {
	LatestSession() *session.BrewSession
	ConnectionState() connection.State
	Subscribe(buffer int) (<-chan *session.BrewSession, func())
}

type Option func(*Server)

// WithPushInterval coalesces snapshots so clients get at most one per interval.
// Zero pushes every snapshot.
func WithPushInterval(d time.Duration) Option {
	return func(s *Server) { s.pushInterval = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

type Server struct {
	src          Source
	renderer     *chart.Renderer
	hub          *Hub
	engine       *gin.Engine
	upgrader     websocket.Upgrader
	logger       *slog.Logger
	pushInterval time.Duration
}

func NewServer(src Source, renderer *chart.Renderer, opts ...Option) *Server {
	s := &Server{
		src:      src,
		renderer: renderer,
		logger:   slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.hub = NewHub(s.logger)

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	api := r.Group("/api")
	api.GET("/session", s.handleSession)
	api.GET("/series/:metric", s.handleSeries)
	api.GET("/chart/:metric", s.handleChart)
	api.GET("/connection", s.handleConnection)
	r.GET("/ws", s.handleWebSocket)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Hub() *Hub { return s.hub }

// Run drives the websocket hub and pushes snapshots until ctx ends. Start it
// before serving so websocket handlers can register.
func (s *Server) Run(ctx context.Context) {
	updates, cancel := s.src.Subscribe(1)
	defer cancel()
	go s.hub.Run(ctx)

	var (
		tick    <-chan time.Time
		pending *session.BrewSession
	)
	if s.pushInterval > 0 {
		t := time.NewTicker(s.pushInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if tick == nil {
				s.push(snap)
				continue
			}
			pending = snap
		case <-tick:
			if pending != nil {
				s.push(pending)
				pending = nil
			}
		}
	}
}

func (s *Server) push(snap *session.BrewSession) {
	if s.hub.Clients() == 0 {
		return
	}
	msg, err := json.Marshal(newSnapshotMessage(s.renderer, snap, s.src.ConnectionState()))
	if err != nil {
		s.logger.Error("encode snapshot", "error", err)
		return
	}
	s.hub.Broadcast(msg)
}

func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, NewSessionView(s.src.LatestSession()))
}

func (s *Server) handleSeries(c *gin.Context) {
	m, ok := metricParam(c)
	if !ok {
		return
	}
	limit := s.renderer.Cap()
	if raw := c.Query("cap"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cap must be a positive integer"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, gin.H{
		"metric": m.String(),
		"cap":    limit,
		"values": s.renderer.Series(s.src.LatestSession(), m, limit),
	})
}

func (s *Server) handleChart(c *gin.Context) {
	m, ok := metricParam(c)
	if !ok {
		return
	}
	g, err := s.renderer.Chart(s.src.LatestSession(), m)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, NewChartView(s.renderer, m, g))
}

func (s *Server) handleConnection(c *gin.Context) {
	c.JSON(http.StatusOK, s.src.ConnectionState())
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	cl := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  s.hub,
	}
	if msg, err := json.Marshal(newSnapshotMessage(s.renderer, s.src.LatestSession(), s.src.ConnectionState())); err == nil {
		cl.send <- msg
	}

	select {
	case s.hub.register <- cl:
	case <-s.hub.done:
		conn.Close()
		return
	case <-c.Request.Context().Done():
		conn.Close()
		return
	}
	go cl.writePump()
	go cl.readPump()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func metricParam(c *gin.Context) (domain.Metric, bool) {
	m, err := domain.ParseMetric(c.Param("metric"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return 0, false
	}
	return m, true
}
