package session

// LifecycleHooks observe sessions entering and leaving the table.
type LifecycleHooks interface {
	// OnConnect is called after a session is created, before the datagram
	// that created it is applied.
	OnConnect(s *Session)

	// OnDisconnect is called before a session's slot is released. s.Reason
	// says why.
	OnDisconnect(s *Session)
}

// Hooks is the callback surface implemented by game logic.
//
// The server calls every method from its loop goroutine:
//   - OnInit once before the loop starts
//   - OnTick once per simulation tick, before per-client processing
//   - OnClient once per tick per connected session, before its output is sent
//   - OnQuit once after the loop exits
type Hooks interface {
	LifecycleHooks

	OnInit()
	OnQuit()
	OnTick()
	OnClient(s *Session)
}

// Controller lets game logic act on the server from inside hooks.
type Controller interface {
	// CurrentTick returns the global tick counter.
	CurrentTick() uint64

	// Destroy removes a connected session. OnDisconnect fires before return.
	Destroy(s *Session)
}

// ControllerAware is implemented by hooks that need a Controller. The server
// injects itself before OnInit.
type ControllerAware interface {
	SetController(c Controller)
}

// NopHooks implements Hooks with empty methods. Embed it to override only
// the callbacks you need.
type NopHooks struct{}

func (NopHooks) OnInit()                 {}
func (NopHooks) OnQuit()                 {}
func (NopHooks) OnTick()                 {}
func (NopHooks) OnConnect(s *Session)    {}
func (NopHooks) OnDisconnect(s *Session) {}
func (NopHooks) OnClient(s *Session)     {}
