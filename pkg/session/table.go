package session

import (
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/tinymmo/internal/protocol/wire"
)

// Table is a fixed-capacity registry of sessions keyed by peer address.
//
// Slots live in a flat array allocated once. An address index and a stack of
// free slot indices give O(1) lookup, create and destroy. Capacity never
// changes; when every slot is taken, new addresses are rejected.
type Table struct {
	slots  []Session
	byAddr map[netip.AddrPort]int
	byID   map[uuid.UUID]int
	free   []int
	hooks  LifecycleHooks
	now    func() time.Time
}

// NewTable creates a table with room for capacity sessions. hooks may be nil.
func NewTable(capacity int, hooks LifecycleHooks) *Table {
	if capacity <= 0 {
		panic("session table capacity must be positive")
	}
	if hooks == nil {
		hooks = NopHooks{}
	}

	t := &Table{
		slots:  make([]Session, capacity),
		byAddr: make(map[netip.AddrPort]int, capacity),
		byID:   make(map[uuid.UUID]int, capacity),
		free:   make([]int, 0, capacity),
		hooks:  hooks,
		now:    time.Now,
	}

	// Lowest slot index is handed out first.
	for i := capacity - 1; i >= 0; i-- {
		t.slots[i].slot = i
		t.free = append(t.free, i)
	}
	return t
}

// Canonical returns the identity used for addr: IPv4-mapped IPv6 addresses
// are unmapped so the same peer always maps to one session.
func Canonical(addr netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}

// FindOrCreate returns the session for addr, creating it if needed.
//
// A new session starts with LastTick set to tick and music set to
// wire.MusicNone; OnConnect fires before it is returned. The boolean is false
// when addr is invalid or the table is full, in which case no hook fires.
func (t *Table) FindOrCreate(addr netip.AddrPort, tick uint64) (*Session, bool) {
	if !addr.IsValid() {
		return nil, false
	}
	addr = Canonical(addr)

	if i, ok := t.byAddr[addr]; ok {
		return &t.slots[i], true
	}

	if len(t.free) == 0 {
		return nil, false
	}

	i := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]

	s := &t.slots[i]
	*s = Session{
		ID:        uuid.New(),
		Addr:      addr,
		Connected: true,
		Output:    Output{Music: wire.MusicNone},
		Net:       NetState{LastTick: tick},
		Stats:     Stats{ConnectedTick: tick, ConnectedAt: t.now()},
		slot:      i,
	}
	t.byAddr[addr] = i
	t.byID[s.ID] = i

	t.hooks.OnConnect(s)
	return s, true
}

// Lookup returns the connected session for addr without creating one.
func (t *Table) Lookup(addr netip.AddrPort) (*Session, bool) {
	i, ok := t.byAddr[Canonical(addr)]
	if !ok {
		return nil, false
	}
	return &t.slots[i], true
}

// ByID returns the connected session with the given ID.
func (t *Table) ByID(id uuid.UUID) (*Session, bool) {
	i, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return &t.slots[i], true
}

// Destroy fires OnDisconnect, zeroes the slot and returns it to the free pool.
// Destroying a session that is not connected does nothing.
func (t *Table) Destroy(s *Session, reason Reason) {
	if s == nil || !s.Connected {
		return
	}
	i := s.slot
	if i < 0 || i >= len(t.slots) || &t.slots[i] != s {
		return
	}

	s.Reason = reason
	t.hooks.OnDisconnect(s)

	delete(t.byAddr, s.Addr)
	delete(t.byID, s.ID)
	*s = Session{slot: i}
	t.free = append(t.free, i)
}

// ForEachConnected calls fn for every connected session in slot order.
// fn may destroy the session it is given.
func (t *Table) ForEachConnected(fn func(s *Session)) {
	for i := range t.slots {
		if t.slots[i].Connected {
			fn(&t.slots[i])
		}
	}
}

// Len returns the number of connected sessions.
func (t *Table) Len() int {
	return len(t.slots) - len(t.free)
}

// Cap returns the fixed capacity.
func (t *Table) Cap() int {
	return len(t.slots)
}

// Full reports whether every slot is taken.
func (t *Table) Full() bool {
	return len(t.free) == 0
}
