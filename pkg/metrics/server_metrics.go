package metrics

import "time"

// ServerMetrics provides observability for the tick loop and packet pump.
//
// Implementations must be cheap: every method is called from the server loop
// goroutine, several times per tick. If no implementation is supplied to the
// server, a no-op one is used.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewServerMetrics()
//	srv := server.New(cfg, hooks, server.WithMetrics(m))
//
//	// Without metrics (no-op)
//	srv := server.New(cfg, hooks)
type ServerMetrics interface {
	// RecordDatagram counts one datagram read from the socket.
	RecordDatagram(bytes int)

	// RecordDrop counts a datagram discarded by the pump.
	//
	// Parameters:
	//   - reason: "rate_limited", "short", "table_full" or "stale"
	RecordDrop(reason string)

	// RecordSend records one output datagram. err is the write error, if any.
	RecordSend(bytes int, err error)

	// RecordTick records the wall time spent running one simulation tick.
	RecordTick(duration time.Duration)

	// RecordTicksSkipped counts backlog ticks discarded by the catch-up cap.
	RecordTicksSkipped(n int)

	// SetSessions updates the connected session gauge.
	SetSessions(count int)

	// RecordConnect counts a session creation.
	RecordConnect()

	// RecordDisconnect counts a session removal.
	//
	// Parameters:
	//   - reason: "timeout", "kicked" or "destroyed"
	RecordDisconnect(reason string)
}

// NewNoopServerMetrics returns a ServerMetrics that records nothing.
func NewNoopServerMetrics() ServerMetrics {
	return noopServerMetrics{}
}

// noopServerMetrics is a no-op implementation of ServerMetrics with zero overhead.
type noopServerMetrics struct{}

func (noopServerMetrics) RecordDatagram(bytes int)          {}
func (noopServerMetrics) RecordDrop(reason string)          {}
func (noopServerMetrics) RecordSend(bytes int, err error)   {}
func (noopServerMetrics) RecordTick(duration time.Duration) {}
func (noopServerMetrics) RecordTicksSkipped(n int)          {}
func (noopServerMetrics) SetSessions(count int)             {}
func (noopServerMetrics) RecordConnect()                    {}
func (noopServerMetrics) RecordDisconnect(reason string)    {}
