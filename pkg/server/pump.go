package server

import (
	"errors"
	"net"
	"net/netip"

	"github.com/marmos91/tinymmo/internal/logger"
	"github.com/marmos91/tinymmo/internal/protocol/wire"
)

// Reasons a datagram is dropped by the pump.
const (
	DropRateLimited = "rate_limited"
	DropShort       = "short"
	DropTableFull   = "table_full"
	DropStale       = "stale"
)

// Pump reads every datagram currently pending and applies it to its session.
// It stops at the first read that would block, fails, or returns no bytes,
// and returns the number of datagrams read.
//
// Malformed, stale and unplaceable datagrams are counted and dropped; they
// never surface as errors.
func (s *Server) Pump() int {
	count := 0
	for {
		n, addr, err := s.conn.ReadFrom(s.recvBuf[:])
		if err != nil {
			if !errors.Is(err, ErrWouldBlock) && !errors.Is(err, net.ErrClosed) {
				logger.Debug("UDP receive error: %v", err)
			}
			return count
		}
		if n == 0 {
			return count
		}

		count++
		s.handleDatagram(s.recvBuf[:n], addr)
	}
}

func (s *Server) handleDatagram(data []byte, addr netip.AddrPort) {
	s.metrics.RecordDatagram(len(data))

	if !s.limiter.Allow() {
		s.metrics.RecordDrop(DropRateLimited)
		return
	}

	in, err := wire.DecodeInput(data)
	if err != nil {
		s.metrics.RecordDrop(DropShort)
		return
	}

	sess, ok := s.table.FindOrCreate(addr, s.tick)
	if !ok {
		s.metrics.RecordDrop(DropTableFull)
		return
	}

	if !sess.Accept(in, s.tick) {
		s.metrics.RecordDrop(DropStale)
	}
}
