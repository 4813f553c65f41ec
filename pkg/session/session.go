// Package session holds the per-peer session record, the fixed-capacity
// table that maps network addresses to sessions, and the hook surface through
// which game logic observes and drives sessions.
//
// Everything in this package is owned by the server loop goroutine and is not
// safe for concurrent use.
package session

import (
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/tinymmo/internal/protocol/wire"
)

// Reason records why a session left the table.
type Reason string

const (
	// ReasonTimeout means no accepted datagram arrived within the timeout.
	ReasonTimeout Reason = "timeout"
	// ReasonKicked means an operator removed the session.
	ReasonKicked Reason = "kicked"
	// ReasonDestroyed means game logic removed the session.
	ReasonDestroyed Reason = "destroyed"
)

// Input is the button state last reported by the peer.
type Input struct {
	// Down is the bitmask of buttons currently held.
	Down uint8
	// Pressed holds buttons that went from up to down since the last send.
	// Cleared after every send.
	Pressed uint8
}

// Output is what the peer should present this tick. Game logic fills it in
// OnClient.
type Output struct {
	Video wire.Video
	// Audio is a bitmask of sound effects to trigger. Cleared after every send.
	Audio uint32
	// Music is the track to play, or wire.MusicNone.
	Music int8
}

// NetState tracks sequencing for one peer.
type NetState struct {
	// LastTick is the server tick at which a datagram was last accepted.
	LastTick uint64
	// SendTick is the sequence stamped on the last datagram sent.
	SendTick uint32
	// RecvTick is the highest sequence accepted from the peer.
	RecvTick uint32
}

// Stats are informational counters exposed through the admin API and ledger.
type Stats struct {
	ConnectedTick uint64
	ConnectedAt   time.Time
	Accepted      uint64
	Stale         uint64
	Sent          uint64
	SendErrors    uint64
}

// Session is the server-side record of one peer.
type Session struct {
	ID        uuid.UUID
	Addr      netip.AddrPort
	Connected bool

	Input  Input
	Output Output
	Net    NetState
	Stats  Stats

	// Reason is set just before the disconnect hook fires.
	Reason Reason

	slot int
}

// Slot returns the table slot index holding this session.
func (s *Session) Slot() int {
	return s.slot
}

// String returns the peer address in ip:port form.
func (s *Session) String() string {
	return s.Addr.String()
}

// Accept applies an input datagram received at tick.
//
// Datagrams whose sequence is not strictly greater than RecvTick are rejected
// and leave the session untouched apart from the stale counter.
func (s *Session) Accept(in wire.Input, tick uint64) bool {
	if in.Sequence <= s.Net.RecvTick {
		s.Stats.Stale++
		return false
	}

	s.Net.LastTick = tick
	s.Net.RecvTick = in.Sequence
	s.Input.Pressed = wire.Pressed(s.Input.Down, in.Buttons)
	s.Input.Down = in.Buttons
	s.Stats.Accepted++
	return true
}

// TimedOut reports whether more than timeout ticks passed since LastTick.
func (s *Session) TimedOut(tick, timeout uint64) bool {
	return tick-s.Net.LastTick > timeout
}

// NextOutput stamps the next send sequence and returns the datagram to send.
func (s *Session) NextOutput() *wire.Output {
	s.Net.SendTick++
	return &wire.Output{
		Sequence: s.Net.SendTick,
		Audio:    s.Output.Audio,
		Music:    s.Output.Music,
		Video:    s.Output.Video,
	}
}

// ClearEdges resets the edge-triggered fields after a send attempt.
func (s *Session) ClearEdges() {
	s.Input.Pressed = 0
	s.Output.Audio = 0
}
