package server

import (
	"time"

	"github.com/marmos91/tinymmo/internal/logger"
	"github.com/marmos91/tinymmo/internal/protocol/wire"
	"github.com/marmos91/tinymmo/pkg/session"
)

// Tick advances the simulation by one step: the tick counter is incremented,
// OnTick runs, then every connected session is either evicted for timeout or
// given OnClient and sent its output.
func (s *Server) Tick() {
	start := time.Now()

	s.tick++
	s.hooks.OnTick()
	s.table.ForEachConnected(s.tickSession)

	s.metrics.RecordTick(time.Since(start))
}

func (s *Server) tickSession(sess *session.Session) {
	if sess.TimedOut(s.tick, s.config.TimeoutTicks) {
		s.table.Destroy(sess, session.ReasonTimeout)
		return
	}

	s.hooks.OnClient(sess)
	if !sess.Connected {
		// Destroyed by game logic inside OnClient.
		return
	}
	s.send(sess)
}

// send encodes and writes the session's output, then clears its edge fields
// whether or not the write succeeded.
func (s *Server) send(sess *session.Session) {
	defer sess.ClearEdges()

	buf, err := wire.EncodeOutput(s.sendBuf[:], sess.NextOutput())
	if err != nil {
		logger.Error("Failed to encode output for %s: %v", sess, err)
		return
	}

	n, err := s.conn.WriteTo(buf, sess.Addr)
	s.metrics.RecordSend(n, err)
	if err != nil {
		sess.Stats.SendErrors++
		logger.Debug("Failed to send tick %d to %s: %v", sess.Net.SendTick, sess, err)
		return
	}
	sess.Stats.Sent++
}
