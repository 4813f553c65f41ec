// Package wire encodes and decodes the two fixed-layout datagrams exchanged
// between game clients and the session server.
//
// All multi-byte integers are big-endian. Layouts:
//
//	client -> server (5 bytes):
//	  [0:4]  sequence  uint32
//	  [4]    buttons   uint8 bitmask
//
//	server -> client (265 bytes):
//	  [0:4]   sequence  uint32
//	  [4:8]   audio     uint32 bitmask of sound effects
//	  [8]     music     int8 track id, -1 = no track
//	  [9:265] video     16x16 tile ids, row-major
package wire

import (
	"encoding/binary"
	"errors"
)

const (
	// VideoCols is the number of tile columns in a frame.
	VideoCols = 16
	// VideoRows is the number of tile rows in a frame.
	VideoRows = 16

	// AudioSounds is the number of addressable sound effects (one bit each).
	AudioSounds = 32
	// AudioTracks is the number of music tracks.
	AudioTracks = 8

	// MusicNone means no music track should play.
	MusicNone int8 = -1

	// InputSize is the size of a client -> server datagram.
	InputSize = 5
	// OutputHeaderSize is the size of the fixed header preceding the video grid.
	OutputHeaderSize = 9
	// OutputSize is the size of a server -> client datagram.
	OutputSize = OutputHeaderSize + VideoRows*VideoCols

	// MaxDatagramSize bounds receive buffers on both sides.
	MaxDatagramSize = 1024
)

// Button bits reported by clients.
const (
	ButtonA     uint8 = 1 << 0
	ButtonB     uint8 = 1 << 1
	ButtonX     uint8 = 1 << 2
	ButtonY     uint8 = 1 << 3
	ButtonUp    uint8 = 1 << 4
	ButtonDown  uint8 = 1 << 5
	ButtonLeft  uint8 = 1 << 6
	ButtonRight uint8 = 1 << 7
)

var (
	// ErrShortPacket is returned when a datagram is smaller than its layout.
	// Callers ignore such datagrams.
	ErrShortPacket = errors.New("wire: short packet")

	// ErrShortBuffer is returned when an encode target cannot hold the layout.
	ErrShortBuffer = errors.New("wire: short buffer")
)

// Video is a frame of tile identifiers indexed as [row][col].
type Video [VideoRows][VideoCols]byte

// Input is the decoded client -> server datagram.
type Input struct {
	Sequence uint32
	Buttons  uint8
}

// Output is the server -> client datagram.
type Output struct {
	Sequence uint32
	Audio    uint32
	Music    int8
	Video    Video
}

// DecodeInput parses a client datagram. Bytes beyond InputSize are ignored.
func DecodeInput(data []byte) (Input, error) {
	if len(data) < InputSize {
		return Input{}, ErrShortPacket
	}
	return Input{
		Sequence: binary.BigEndian.Uint32(data[0:4]),
		Buttons:  data[4],
	}, nil
}

// EncodeInput writes a client datagram into dst and returns the used prefix.
func EncodeInput(dst []byte, in Input) ([]byte, error) {
	if len(dst) < InputSize {
		return nil, ErrShortBuffer
	}
	binary.BigEndian.PutUint32(dst[0:4], in.Sequence)
	dst[4] = in.Buttons
	return dst[:InputSize], nil
}

// EncodeOutput writes a server datagram into dst and returns the used prefix.
// dst must be at least OutputSize bytes; no allocation happens.
func EncodeOutput(dst []byte, out *Output) ([]byte, error) {
	if len(dst) < OutputSize {
		return nil, ErrShortBuffer
	}
	binary.BigEndian.PutUint32(dst[0:4], out.Sequence)
	binary.BigEndian.PutUint32(dst[4:8], out.Audio)
	dst[8] = byte(out.Music)

	off := OutputHeaderSize
	for row := range out.Video {
		off += copy(dst[off:], out.Video[row][:])
	}
	return dst[:OutputSize], nil
}

// DecodeOutput parses a server datagram.
func DecodeOutput(data []byte) (Output, error) {
	var out Output
	if len(data) < OutputSize {
		return out, ErrShortPacket
	}
	out.Sequence = binary.BigEndian.Uint32(data[0:4])
	out.Audio = binary.BigEndian.Uint32(data[4:8])
	out.Music = int8(data[8])

	off := OutputHeaderSize
	for row := range out.Video {
		off += copy(out.Video[row][:], data[off:off+VideoCols])
	}
	return out, nil
}

// Pressed returns the buttons that are down in now but were not down in prev.
func Pressed(prev, now uint8) uint8 {
	return now &^ prev
}
