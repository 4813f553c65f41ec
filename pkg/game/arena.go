// Package game contains the demo game logic shipped with the server binary.
//
// Arena is a shared 16x16 canvas. Every player steers a cursor with the
// d-pad, A toggles the tile under the cursor, Y leaves the game. Music
// rotates through the tracks on a fixed period.
package game

import (
	"github.com/google/uuid"
	"github.com/marmos91/tinymmo/internal/logger"
	"github.com/marmos91/tinymmo/internal/protocol/wire"
	"github.com/marmos91/tinymmo/pkg/session"
)

// Tile ids used in video frames.
const (
	TileEmpty  byte = 0
	TilePaint  byte = 1
	TileOther  byte = 2
	TileCursor byte = 3
)

// Sound effect bits.
const (
	SoundJoin  = 0
	SoundPaint = 1
	SoundBump  = 2
)

type cursor struct {
	x, y int

	// drawn is where the cursor was when the shared frame was built.
	drawnX, drawnY int
}

// Arena implements session.Hooks.
type Arena struct {
	session.NopHooks

	ctrl session.Controller

	board   wire.Video
	frame   wire.Video
	players map[uuid.UUID]*cursor

	musicPeriod uint64
	track       int8
}

// NewArena creates an empty arena. The music track advances every
// musicPeriod ticks; 0 keeps music off.
func NewArena(musicPeriod uint64) *Arena {
	return &Arena{
		players:     make(map[uuid.UUID]*cursor),
		musicPeriod: musicPeriod,
		track:       wire.MusicNone,
	}
}

func (a *Arena) SetController(c session.Controller) {
	a.ctrl = c
}

func (a *Arena) OnInit() {
	logger.Info("Arena ready (%dx%d)", wire.VideoCols, wire.VideoRows)
}

func (a *Arena) OnQuit() {
	logger.Info("Arena closed with %d players", len(a.players))
}

// OnTick picks the music track and renders the frame shared by every client.
func (a *Arena) OnTick() {
	if a.musicPeriod > 0 && a.ctrl != nil {
		a.track = int8((a.ctrl.CurrentTick() / a.musicPeriod) % wire.AudioTracks)
	}

	a.frame = a.board
	for _, c := range a.players {
		c.drawnX, c.drawnY = c.x, c.y
		a.frame[c.y][c.x] = TileOther
	}
}

// OnConnect places the new cursor by slot so players start spread out.
func (a *Arena) OnConnect(s *session.Session) {
	slot := s.Slot()
	c := &cursor{x: slot % wire.VideoCols, y: (slot / wire.VideoCols) % wire.VideoRows}
	c.drawnX, c.drawnY = -1, -1
	a.players[s.ID] = c
	s.Output.Audio |= 1 << SoundJoin
}

func (a *Arena) OnDisconnect(s *session.Session) {
	delete(a.players, s.ID)
}

func (a *Arena) OnClient(s *session.Session) {
	c, ok := a.players[s.ID]
	if !ok {
		return
	}

	pressed := s.Input.Pressed
	if pressed&wire.ButtonY != 0 && a.ctrl != nil {
		a.ctrl.Destroy(s)
		return
	}

	if a.move(c, pressed) {
		s.Output.Audio |= 1 << SoundBump
	}
	if pressed&wire.ButtonA != 0 {
		if a.board[c.y][c.x] == TilePaint {
			a.board[c.y][c.x] = TileEmpty
		} else {
			a.board[c.y][c.x] = TilePaint
		}
		s.Output.Audio |= 1 << SoundPaint
	}

	s.Output.Video = a.frame
	if c.drawnX >= 0 {
		// The shared frame marks this player as another cursor; undo that.
		s.Output.Video[c.drawnY][c.drawnX] = a.board[c.drawnY][c.drawnX]
	}
	s.Output.Video[c.y][c.x] = TileCursor
	s.Output.Music = a.track
}

// move applies d-pad presses and reports whether the cursor hit an edge.
func (a *Arena) move(c *cursor, pressed uint8) (bumped bool) {
	step := func(v, d, limit int) int {
		n := v + d
		if n < 0 || n >= limit {
			bumped = true
			return v
		}
		return n
	}

	if pressed&wire.ButtonLeft != 0 {
		c.x = step(c.x, -1, wire.VideoCols)
	}
	if pressed&wire.ButtonRight != 0 {
		c.x = step(c.x, 1, wire.VideoCols)
	}
	if pressed&wire.ButtonUp != 0 {
		c.y = step(c.y, -1, wire.VideoRows)
	}
	if pressed&wire.ButtonDown != 0 {
		c.y = step(c.y, 1, wire.VideoRows)
	}
	return bumped
}

// Players returns the number of cursors on the board.
func (a *Arena) Players() int {
	return len(a.players)
}

// Tile returns the painted state of the board at (x, y).
func (a *Arena) Tile(x, y int) byte {
	return a.board[y][x]
}
