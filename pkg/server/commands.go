package server

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/tinymmo/pkg/session"
)

type command struct {
	fn   func()
	done chan struct{}
}

// Submit runs fn on the loop goroutine, between the pump and the ticks of the
// next iteration, and waits for it to finish.
//
// Returns ctx.Err() if ctx ends first and ErrServerClosed once the loop has
// exited. In both cases fn may still run later, so callers must only read
// what fn wrote after a nil return.
func (s *Server) Submit(ctx context.Context, fn func()) error {
	cmd := command{fn: fn, done: make(chan struct{})}

	select {
	case s.commands <- cmd:
	case <-s.stopped:
		return ErrServerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cmd.done:
		return nil
	case <-s.stopped:
		select {
		case <-cmd.done:
			return nil
		default:
			return ErrServerClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) runCommands() {
	for {
		select {
		case cmd := <-s.commands:
			cmd.fn()
			close(cmd.done)
		default:
			return
		}
	}
}

// ClientInfo is a copy of one session's state, safe to use off the loop.
type ClientInfo struct {
	ID            uuid.UUID `json:"id"`
	Addr          string    `json:"addr"`
	Slot          int       `json:"slot"`
	Down          uint8     `json:"down"`
	LastTick      uint64    `json:"last_tick"`
	RecvTick      uint32    `json:"recv_tick"`
	SendTick      uint32    `json:"send_tick"`
	IdleTicks     uint64    `json:"idle_ticks"`
	ConnectedTick uint64    `json:"connected_tick"`
	ConnectedAt   time.Time `json:"connected_at"`
	Accepted      uint64    `json:"accepted"`
	Stale         uint64    `json:"stale"`
	Sent          uint64    `json:"sent"`
	SendErrors    uint64    `json:"send_errors"`
}

// Status summarizes the loop.
type Status struct {
	Tick         uint64        `json:"tick"`
	Sessions     int           `json:"sessions"`
	Capacity     int           `json:"capacity"`
	TickRate     int           `json:"tick_rate"`
	TimeoutTicks uint64        `json:"timeout_ticks"`
	StartedAt    time.Time     `json:"started_at"`
	Uptime       time.Duration `json:"uptime_ns"`
}

func (s *Server) clientInfo(sess *session.Session) ClientInfo {
	return ClientInfo{
		ID:            sess.ID,
		Addr:          sess.String(),
		Slot:          sess.Slot(),
		Down:          sess.Input.Down,
		LastTick:      sess.Net.LastTick,
		RecvTick:      sess.Net.RecvTick,
		SendTick:      sess.Net.SendTick,
		IdleTicks:     s.tick - sess.Net.LastTick,
		ConnectedTick: sess.Stats.ConnectedTick,
		ConnectedAt:   sess.Stats.ConnectedAt,
		Accepted:      sess.Stats.Accepted,
		Stale:         sess.Stats.Stale,
		Sent:          sess.Stats.Sent,
		SendErrors:    sess.Stats.SendErrors,
	}
}

// Status returns a snapshot of the loop state.
func (s *Server) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.Submit(ctx, func() {
		st = Status{
			Tick:         s.tick,
			Sessions:     s.table.Len(),
			Capacity:     s.table.Cap(),
			TickRate:     s.config.TickRate,
			TimeoutTicks: s.config.TimeoutTicks,
			StartedAt:    s.startedAt,
			Uptime:       s.now().Sub(s.startedAt),
		}
	})
	if err != nil {
		return Status{}, err
	}
	return st, nil
}

// Clients returns a snapshot of every connected session in slot order.
func (s *Server) Clients(ctx context.Context) ([]ClientInfo, error) {
	var out []ClientInfo
	err := s.Submit(ctx, func() {
		out = make([]ClientInfo, 0, s.table.Len())
		s.table.ForEachConnected(func(sess *session.Session) {
			out = append(out, s.clientInfo(sess))
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Client returns a snapshot of one session. The boolean is false if no
// connected session has that ID.
func (s *Server) Client(ctx context.Context, id uuid.UUID) (ClientInfo, bool, error) {
	var (
		info  ClientInfo
		found bool
	)
	err := s.Submit(ctx, func() {
		sess, ok := s.table.ByID(id)
		if !ok {
			return
		}
		info, found = s.clientInfo(sess), true
	})
	if err != nil {
		return ClientInfo{}, false, err
	}
	return info, found, nil
}

// Kick destroys the session with the given ID on behalf of an operator.
// Returns false if no connected session has that ID.
func (s *Server) Kick(ctx context.Context, id uuid.UUID) (bool, error) {
	var found bool
	err := s.Submit(ctx, func() {
		sess, ok := s.table.ByID(id)
		if !ok {
			return
		}
		found = true
		s.table.Destroy(sess, session.ReasonKicked)
	})
	if err != nil {
		return false, err
	}
	return found, nil
}
