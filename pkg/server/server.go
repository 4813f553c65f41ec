// Package server runs the tick-synchronized UDP session loop.
//
// A single goroutine owns the session table and the tick counter. Each loop
// iteration drains the socket (Pump), runs queued admin commands, then fires
// as many ticks as the elapsed wall-clock time allows (Tick). Other
// goroutines reach loop state only through Submit.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/marmos91/tinymmo/internal/logger"
	"github.com/marmos91/tinymmo/internal/protocol/wire"
	"github.com/marmos91/tinymmo/internal/ratelimiter"
	"github.com/marmos91/tinymmo/pkg/ledger"
	"github.com/marmos91/tinymmo/pkg/metrics"
	"github.com/marmos91/tinymmo/pkg/session"
)

// ErrServerClosed is returned by Submit once the loop has exited, and by
// Serve when called a second time.
var ErrServerClosed = errors.New("server closed")

// EventRecorder receives ledger records from the loop. Record must not block.
type EventRecorder interface {
	Record(rec ledger.Record) bool
}

// Server is the explicitly constructed context owning the session table,
// tick counter and transport.
type Server struct {
	config Config
	hooks  session.Hooks
	table  *session.Table
	sched  *Scheduler

	conn     PacketConn
	metrics  metrics.ServerMetrics
	limiter  *ratelimiter.RateLimiter
	recorder EventRecorder

	// tick is the global tick counter. Only the loop goroutine touches it.
	tick uint64

	commands chan command
	started  atomic.Bool
	stopped  chan struct{}

	startedAt time.Time
	now       func() time.Time

	recvBuf [wire.MaxDatagramSize]byte
	sendBuf [wire.OutputSize]byte
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics sets the metrics collector. Defaults to no-op.
func WithMetrics(m metrics.ServerMetrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRecorder sends connect/disconnect records to r.
func WithRecorder(r EventRecorder) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithLimiter drops datagrams beyond the limiter's rate. nil means unlimited.
func WithLimiter(l *ratelimiter.RateLimiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithConn uses conn instead of binding Config.Port in Serve.
func WithConn(conn PacketConn) Option {
	return func(s *Server) {
		s.conn = conn
	}
}

// New creates a server. Defaults are applied to zero config values. hooks may
// be nil; if it implements session.ControllerAware it receives the server
// before OnInit.
//
// Panics if config validation fails.
func New(config Config, hooks session.Hooks, opts ...Option) *Server {
	config.ApplyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid server config: %v", err))
	}

	if hooks == nil {
		hooks = session.NopHooks{}
	}

	s := &Server{
		config:   config,
		hooks:    hooks,
		sched:    NewScheduler(config.TickRate, config.MaxCatchUpTicks),
		metrics:  metrics.NewNoopServerMetrics(),
		commands: make(chan command, 64),
		stopped:  make(chan struct{}),
		now:      time.Now,
	}
	s.table = session.NewTable(config.Capacity, lifecycle{s})

	for _, opt := range opts {
		opt(s)
	}

	if aware, ok := hooks.(session.ControllerAware); ok {
		aware.SetController(s)
	}
	return s
}

// Config returns the effective configuration, defaults included.
func (s *Server) Config() Config {
	return s.config
}

// Serve binds the socket (unless one was supplied with WithConn), calls
// OnInit and runs the loop until ctx is cancelled. Cancellation is observed
// once per iteration: the current iteration finishes, then OnQuit runs and
// the socket is closed.
//
// A bind failure is returned wrapped. Serve may be called only once.
func (s *Server) Serve(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrServerClosed
	}
	defer close(s.stopped)

	if s.conn == nil {
		conn, err := ListenUDP(s.config.Port)
		if err != nil {
			return fmt.Errorf("failed to bind server socket: %w", err)
		}
		s.conn = conn
	}

	s.startedAt = s.now()
	logger.Info("tinymmo server listening on %s (tick_rate=%d capacity=%d timeout_ticks=%d)",
		s.conn.LocalAddr(), s.config.TickRate, s.config.Capacity, s.config.TimeoutTicks)

	s.hooks.OnInit()
	s.loop(ctx)
	s.hooks.OnQuit()

	if err := s.conn.Close(); err != nil {
		logger.Warn("Error closing server socket: %v", err)
	}
	logger.Info("tinymmo server stopped at tick %d", s.tick)
	return nil
}

func (s *Server) loop(ctx context.Context) {
	timer := time.NewTimer(s.config.LoopInterval)
	defer timer.Stop()

	last := s.now()
	lastStats := last

	for ctx.Err() == nil {
		now := s.now()
		s.Step(now.Sub(last))
		last = now

		if now.Sub(lastStats) >= s.config.StatsLogInterval {
			logger.Info("tinymmo stats: tick=%d sessions=%d/%d", s.tick, s.table.Len(), s.table.Cap())
			lastStats = now
		}

		timer.Reset(s.config.LoopInterval)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
}

// Step runs one loop iteration without sleeping: pump, queued commands, then
// the ticks due for elapsed. Returns the number of ticks run.
//
// Step must only be called from the goroutine that owns the server (Serve's,
// or a test's when Serve is not running).
func (s *Server) Step(elapsed time.Duration) int {
	s.Pump()
	s.runCommands()

	ticks, skipped := s.sched.Advance(elapsed)
	if skipped > 0 {
		logger.Warn("Tick loop fell behind: discarding %d ticks (max catch-up %d)", skipped, s.config.MaxCatchUpTicks)
		s.metrics.RecordTicksSkipped(skipped)
	}
	for i := 0; i < ticks; i++ {
		s.Tick()
	}

	s.metrics.SetSessions(s.table.Len())
	return ticks
}

// CurrentTick returns the global tick counter. Loop goroutine only.
func (s *Server) CurrentTick() uint64 {
	return s.tick
}

// Destroy removes a session on behalf of game logic. Loop goroutine only.
func (s *Server) Destroy(sess *session.Session) {
	s.table.Destroy(sess, session.ReasonDestroyed)
}

// Table exposes the session table. Loop goroutine only.
func (s *Server) Table() *session.Table {
	return s.table
}

func (s *Server) record(rec ledger.Record) {
	if s.recorder != nil {
		s.recorder.Record(rec)
	}
}

// lifecycle sits between the table and the game hooks: it logs, counts and
// records every connect and disconnect, then forwards to the game.
type lifecycle struct {
	s *Server
}

func (l lifecycle) OnConnect(sess *session.Session) {
	logger.Info("Client %s connected", sess)
	l.s.metrics.RecordConnect()
	l.s.record(ledger.Connect(sess, l.s.tick, l.s.now()))
	l.s.hooks.OnConnect(sess)
}

func (l lifecycle) OnDisconnect(sess *session.Session) {
	logger.Info("Client %s disconnected (%s)", sess, sess.Reason)
	l.s.metrics.RecordDisconnect(string(sess.Reason))
	l.s.record(ledger.Disconnect(sess, l.s.tick, l.s.now()))
	l.s.hooks.OnDisconnect(sess)
}
