package server

import (
	"fmt"
	"time"
)

// Config holds the tick loop and transport parameters.
//
// Default values (applied by New if zero):
//   - Port: 6502
//   - TickRate: 20 ticks per second
//   - Capacity: 1024 sessions
//   - TimeoutTicks: 10 seconds worth of ticks
//   - LoopInterval: 10ms
//   - MaxCatchUpTicks: 0 (unlimited)
//   - ShutdownTimeout: 5s
//   - StatsLogInterval: 5m
type Config struct {
	// Port is the UDP port to listen on.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// TickRate is the number of simulation ticks per second.
	TickRate int `mapstructure:"tick_rate" validate:"min=0,max=1000"`

	// Capacity is the fixed number of session slots. Datagrams from new
	// addresses are dropped once every slot is taken.
	Capacity int `mapstructure:"capacity" validate:"min=0"`

	// TimeoutTicks is how many ticks a session may go without an accepted
	// datagram before it is evicted.
	TimeoutTicks uint64 `mapstructure:"timeout_ticks"`

	// LoopInterval is the sleep between loop iterations. It bounds CPU usage
	// and the latency of input processing.
	LoopInterval time.Duration `mapstructure:"loop_interval" validate:"min=0"`

	// MaxCatchUpTicks caps the ticks run in one iteration after a stall.
	// Excess backlog is discarded. 0 means unlimited.
	MaxCatchUpTicks int `mapstructure:"max_catch_up_ticks" validate:"min=0"`

	// ShutdownTimeout bounds how long the process waits for the loop and its
	// satellites (API, metrics, ledger) to stop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// StatsLogInterval is how often the loop logs a one-line summary.
	StatsLogInterval time.Duration `mapstructure:"stats_log_interval" validate:"min=0"`
}

// ApplyDefaults fills in zero values with the defaults listed on Config.
func (c *Config) ApplyDefaults() {
	if c.Port <= 0 {
		c.Port = 6502
	}
	if c.TickRate <= 0 {
		c.TickRate = 20
	}
	if c.Capacity <= 0 {
		c.Capacity = 1024
	}
	if c.TimeoutTicks == 0 {
		c.TimeoutTicks = uint64(c.TickRate) * 10
	}
	if c.LoopInterval <= 0 {
		c.LoopInterval = 10 * time.Millisecond
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.StatsLogInterval <= 0 {
		c.StatsLogInterval = 5 * time.Minute
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.TickRate <= 0 || c.TickRate > 1000 {
		return fmt.Errorf("invalid TickRate %d: must be 1-1000", c.TickRate)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("invalid Capacity %d: must be > 0", c.Capacity)
	}
	if c.MaxCatchUpTicks < 0 {
		return fmt.Errorf("invalid MaxCatchUpTicks %d: must be >= 0", c.MaxCatchUpTicks)
	}
	return nil
}
