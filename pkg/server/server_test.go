package server

import (
	"errors"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/tinymmo/internal/protocol/wire"
	"github.com/marmos91/tinymmo/internal/ratelimiter"
	"github.com/marmos91/tinymmo/pkg/ledger"
	"github.com/marmos91/tinymmo/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test doubles
// ============================================================================

type datagram struct {
	data []byte
	addr netip.AddrPort
}

// fakeConn is an in-memory PacketConn. Safe for concurrent use so tests can
// deliver datagrams while Serve runs.
type fakeConn struct {
	mu       sync.Mutex
	inbox    []datagram
	sent     []datagram
	writeErr error
	closed   bool
}

func (c *fakeConn) deliver(addr netip.AddrPort, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbox = append(c.inbox, datagram{data: data, addr: addr})
}

func (c *fakeConn) ReadFrom(b []byte) (int, netip.AddrPort, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, netip.AddrPort{}, net.ErrClosed
	}
	if len(c.inbox) == 0 {
		return 0, netip.AddrPort{}, ErrWouldBlock
	}
	d := c.inbox[0]
	c.inbox = c.inbox[1:]
	return copy(b, d.data), d.addr, nil
}

func (c *fakeConn) WriteTo(b []byte, addr netip.AddrPort) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.sent = append(c.sent, datagram{data: append([]byte(nil), b...), addr: addr})
	return len(b), nil
}

func (c *fakeConn) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6502}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) sentTo(addr netip.AddrPort) []wire.Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []wire.Output
	for _, d := range c.sent {
		if d.addr != addr {
			continue
		}
		o, err := wire.DecodeOutput(d.data)
		if err == nil {
			out = append(out, o)
		}
	}
	return out
}

// gameHooks records every callback.
type gameHooks struct {
	session.NopHooks
	controller   session.Controller
	inits, quits int
	ticks        int
	connected    []netip.AddrPort
	disconnected []session.Reason
	onClient     func(s *session.Session)
	clientVisits int
}

func (h *gameHooks) SetController(c session.Controller) { h.controller = c }
func (h *gameHooks) OnInit()                            { h.inits++ }
func (h *gameHooks) OnQuit()                            { h.quits++ }
func (h *gameHooks) OnTick()                            { h.ticks++ }

func (h *gameHooks) OnConnect(s *session.Session) {
	h.connected = append(h.connected, s.Addr)
}

func (h *gameHooks) OnDisconnect(s *session.Session) {
	h.disconnected = append(h.disconnected, s.Reason)
}

func (h *gameHooks) OnClient(s *session.Session) {
	h.clientVisits++
	if h.onClient != nil {
		h.onClient(s)
	}
}

type fakeRecorder struct {
	records []ledger.Record
}

func (r *fakeRecorder) Record(rec ledger.Record) bool {
	r.records = append(r.records, rec)
	return true
}

type countingMetrics struct {
	drops map[string]int
}

func (m *countingMetrics) RecordDatagram(bytes int)          {}
func (m *countingMetrics) RecordSend(bytes int, err error)   {}
func (m *countingMetrics) RecordTick(duration time.Duration) {}
func (m *countingMetrics) RecordTicksSkipped(n int)          {}
func (m *countingMetrics) SetSessions(count int)             {}
func (m *countingMetrics) RecordConnect()                    {}
func (m *countingMetrics) RecordDisconnect(reason string)    {}
func (m *countingMetrics) RecordDrop(reason string) {
	if m.drops == nil {
		m.drops = make(map[string]int)
	}
	m.drops[reason]++
}

// ============================================================================
// Helpers
// ============================================================================

func input(t *testing.T, seq uint32, buttons uint8) []byte {
	t.Helper()
	buf, err := wire.EncodeInput(make([]byte, wire.InputSize), wire.Input{Sequence: seq, Buttons: buttons})
	require.NoError(t, err)
	return buf
}

func peer(s string) netip.AddrPort {
	return netip.MustParseAddrPort(s)
}

func newTestServer(cfg Config, opts ...Option) (*Server, *fakeConn, *gameHooks) {
	conn := &fakeConn{}
	hooks := &gameHooks{}
	srv := New(cfg, hooks, append([]Option{WithConn(conn)}, opts...)...)
	return srv, conn, hooks
}

// oneTick is the elapsed time of exactly one tick at the default rate.
const oneTick = 50 * time.Millisecond

// ============================================================================
// Pump
// ============================================================================

func TestPump_OneSessionPerAddress(t *testing.T) {
	srv, conn, hooks := newTestServer(Config{})
	a, b := peer("10.0.0.1:4000"), peer("10.0.0.2:4000")

	conn.deliver(a, input(t, 1, 0))
	conn.deliver(a, input(t, 2, 0))
	conn.deliver(b, input(t, 1, 0))
	conn.deliver(a, input(t, 3, 0))

	assert.Equal(t, 4, srv.Pump())
	assert.Equal(t, 2, srv.Table().Len())
	assert.Equal(t, []netip.AddrPort{a, b}, hooks.connected)

	sa, ok := srv.Table().Lookup(a)
	require.True(t, ok)
	assert.Equal(t, uint32(3), sa.Net.RecvTick)
}

func TestPump_DropsShortDatagram(t *testing.T) {
	m := &countingMetrics{}
	srv, conn, hooks := newTestServer(Config{}, WithMetrics(m))

	conn.deliver(peer("10.0.0.1:4000"), []byte{0, 0, 0, 1})

	assert.Equal(t, 1, srv.Pump())
	assert.Equal(t, 0, srv.Table().Len())
	assert.Empty(t, hooks.connected)
	assert.Equal(t, 1, m.drops[DropShort])
}

func TestPump_IgnoresTrailingBytes(t *testing.T) {
	srv, conn, _ := newTestServer(Config{})
	a := peer("10.0.0.1:4000")

	conn.deliver(a, append(input(t, 7, wire.ButtonB), 0xde, 0xad))
	srv.Pump()

	sess, ok := srv.Table().Lookup(a)
	require.True(t, ok)
	assert.Equal(t, wire.ButtonB, sess.Input.Down)
}

func TestPump_ReplayAndReorderScenario(t *testing.T) {
	m := &countingMetrics{}
	srv, conn, _ := newTestServer(Config{}, WithMetrics(m))
	a := peer("10.0.0.1:4000")

	conn.deliver(a, input(t, 5, wire.ButtonA))
	srv.Step(oneTick)
	sess, _ := srv.Table().Lookup(a)
	lastTick := sess.Net.LastTick

	conn.deliver(a, input(t, 5, wire.ButtonB))
	conn.deliver(a, input(t, 4, wire.ButtonX))
	srv.Pump()

	assert.Equal(t, uint32(5), sess.Net.RecvTick)
	assert.Equal(t, wire.ButtonA, sess.Input.Down)
	assert.Equal(t, uint8(0), sess.Input.Pressed, "cleared by the send and not set by stale input")
	assert.Equal(t, lastTick, sess.Net.LastTick)
	assert.Equal(t, 2, m.drops[DropStale])
}

func TestPump_RateLimited(t *testing.T) {
	m := &countingMetrics{}
	srv, conn, _ := newTestServer(Config{}, WithMetrics(m), WithLimiter(ratelimiter.New(1, 1)))
	a := peer("10.0.0.1:4000")

	conn.deliver(a, input(t, 1, 0))
	conn.deliver(a, input(t, 2, 0))
	conn.deliver(a, input(t, 3, 0))
	srv.Pump()

	sess, ok := srv.Table().Lookup(a)
	require.True(t, ok)
	assert.Equal(t, uint32(1), sess.Net.RecvTick)
	assert.Equal(t, 2, m.drops[DropRateLimited])
}

func TestPump_StopsOnReadError(t *testing.T) {
	srv, conn, _ := newTestServer(Config{})
	conn.deliver(peer("10.0.0.1:4000"), input(t, 1, 0))
	require.NoError(t, conn.Close())

	assert.Equal(t, 0, srv.Pump())
}

// ============================================================================
// Tick
// ============================================================================

func TestTick_SendsOutputAndClearsEdges(t *testing.T) {
	srv, conn, hooks := newTestServer(Config{})
	a := peer("10.0.0.1:4000")

	var sawPressed uint8
	hooks.onClient = func(s *session.Session) {
		sawPressed = s.Input.Pressed
		s.Output.Audio = 1 << 3
		s.Output.Music = 2
		s.Output.Video[1][2] = 42
	}

	conn.deliver(a, input(t, 1, wire.ButtonA))
	require.Equal(t, 1, srv.Step(oneTick))

	assert.Equal(t, wire.ButtonA, sawPressed)
	assert.Equal(t, 1, hooks.ticks)

	sent := conn.sentTo(a)
	require.Len(t, sent, 1)
	assert.Equal(t, uint32(1), sent[0].Sequence)
	assert.Equal(t, uint32(1<<3), sent[0].Audio)
	assert.Equal(t, int8(2), sent[0].Music)
	assert.Equal(t, byte(42), sent[0].Video[1][2])

	sess, _ := srv.Table().Lookup(a)
	assert.Equal(t, uint8(0), sess.Input.Pressed)
	assert.Equal(t, uint32(0), sess.Output.Audio)
	assert.Equal(t, wire.ButtonA, sess.Input.Down, "down is level state")
	assert.Equal(t, uint64(1), sess.Stats.Sent)
}

func TestTick_NewSessionHasNoMusic(t *testing.T) {
	srv, conn, _ := newTestServer(Config{})
	a := peer("10.0.0.1:4000")

	conn.deliver(a, input(t, 1, 0))
	srv.Step(oneTick)

	sent := conn.sentTo(a)
	require.Len(t, sent, 1)
	assert.Equal(t, wire.MusicNone, sent[0].Music)
}

func TestTick_EdgesClearedOnSendError(t *testing.T) {
	srv, conn, hooks := newTestServer(Config{})
	conn.writeErr = errors.New("network unreachable")
	a := peer("10.0.0.1:4000")
	hooks.onClient = func(s *session.Session) { s.Output.Audio = 0xFF }

	conn.deliver(a, input(t, 1, wire.ButtonY))
	srv.Step(oneTick)

	sess, _ := srv.Table().Lookup(a)
	assert.Equal(t, uint8(0), sess.Input.Pressed)
	assert.Equal(t, uint32(0), sess.Output.Audio)
	assert.Equal(t, uint32(1), sess.Net.SendTick)
	assert.Equal(t, uint64(1), sess.Stats.SendErrors)
}

func TestTick_SendSequenceIncrements(t *testing.T) {
	srv, conn, _ := newTestServer(Config{})
	a := peer("10.0.0.1:4000")

	conn.deliver(a, input(t, 1, 0))
	srv.Step(3 * oneTick)

	sent := conn.sentTo(a)
	require.Len(t, sent, 3)
	for i, o := range sent {
		assert.Equal(t, uint32(i+1), o.Sequence)
	}
}

func TestTick_TimeoutEviction(t *testing.T) {
	rec := &fakeRecorder{}
	srv, conn, hooks := newTestServer(Config{TimeoutTicks: 3}, WithRecorder(rec))
	a := peer("10.0.0.1:4000")

	// Created at tick 0.
	conn.deliver(a, input(t, 1, 0))
	srv.Pump()

	// Ticks 1..3: tick - last_tick <= 3, still served.
	srv.Step(3 * oneTick)
	assert.Len(t, conn.sentTo(a), 3)
	assert.Equal(t, 1, srv.Table().Len())

	// Tick 4: evicted, nothing sent.
	srv.Step(oneTick)
	assert.Len(t, conn.sentTo(a), 3)
	assert.Equal(t, 0, srv.Table().Len())
	assert.Equal(t, []session.Reason{session.ReasonTimeout}, hooks.disconnected)
	assert.Equal(t, 3, hooks.clientVisits)

	require.Len(t, rec.records, 2)
	assert.Equal(t, ledger.KindConnect, rec.records[0].Kind)
	assert.Equal(t, ledger.KindDisconnect, rec.records[1].Kind)
	assert.Equal(t, "timeout", rec.records[1].Reason)
	assert.Equal(t, uint64(4), rec.records[1].Tick)
	assert.Equal(t, uint64(3), rec.records[1].Stats.Sent)

	// An evicted peer reconnects unconditionally.
	conn.deliver(a, input(t, 2, 0))
	srv.Pump()
	assert.Equal(t, 1, srv.Table().Len())
	assert.Len(t, hooks.connected, 2)
}

func TestTick_InputKeepsSessionAlive(t *testing.T) {
	srv, conn, hooks := newTestServer(Config{TimeoutTicks: 2})
	a := peer("10.0.0.1:4000")

	for seq := uint32(1); seq <= 10; seq++ {
		conn.deliver(a, input(t, seq, 0))
		srv.Step(oneTick)
	}

	assert.Equal(t, 1, srv.Table().Len())
	assert.Empty(t, hooks.disconnected)
}

func TestCapacityScenario(t *testing.T) {
	m := &countingMetrics{}
	srv, conn, hooks := newTestServer(Config{Capacity: 2, TimeoutTicks: 3}, WithMetrics(m))
	a, b, c := peer("10.0.0.1:1"), peer("10.0.0.2:1"), peer("10.0.0.3:1")

	conn.deliver(a, input(t, 1, 0))
	conn.deliver(b, input(t, 1, 0))
	srv.Pump()
	assert.Equal(t, 2, srv.Table().Len())

	conn.deliver(c, input(t, 1, 0))
	srv.Pump()
	assert.Equal(t, 2, srv.Table().Len())
	assert.Equal(t, []netip.AddrPort{a, b}, hooks.connected)
	assert.Equal(t, 1, m.drops[DropTableFull])

	sb, ok := srv.Table().Lookup(b)
	require.True(t, ok)
	srv.Destroy(sb)
	assert.Equal(t, []session.Reason{session.ReasonDestroyed}, hooks.disconnected)

	conn.deliver(c, input(t, 2, 0))
	srv.Pump()
	_, ok = srv.Table().Lookup(c)
	assert.True(t, ok)
	assert.Equal(t, []netip.AddrPort{a, b, c}, hooks.connected)
}

func TestTick_DestroyFromOnClient(t *testing.T) {
	srv, conn, hooks := newTestServer(Config{})
	a := peer("10.0.0.1:4000")
	hooks.onClient = func(s *session.Session) {
		hooks.controller.Destroy(s)
	}

	conn.deliver(a, input(t, 1, 0))
	srv.Step(oneTick)

	assert.Empty(t, conn.sentTo(a))
	assert.Equal(t, 0, srv.Table().Len())
	assert.Equal(t, []session.Reason{session.ReasonDestroyed}, hooks.disconnected)
}

func TestStep_MaxCatchUp(t *testing.T) {
	srv, _, hooks := newTestServer(Config{MaxCatchUpTicks: 2})

	assert.Equal(t, 2, srv.Step(time.Second))
	assert.Equal(t, 2, hooks.ticks)
	assert.Equal(t, uint64(2), srv.CurrentTick())
}

func TestNew(t *testing.T) {
	hooks := &gameHooks{}
	srv := New(Config{}, hooks)

	assert.Same(t, srv, hooks.controller)
	assert.Equal(t, 6502, srv.Config().Port)
	assert.Equal(t, uint64(200), srv.Config().TimeoutTicks)
	assert.Equal(t, 1024, srv.Table().Cap())

	assert.Panics(t, func() { New(Config{TickRate: 5000}, nil) })
}
