package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutSizes(t *testing.T) {
	assert.Equal(t, 5, InputSize)
	assert.Equal(t, 265, OutputSize)
}

func TestDecodeInput(t *testing.T) {
	t.Run("BigEndianFields", func(t *testing.T) {
		in, err := DecodeInput([]byte{0x01, 0x02, 0x03, 0x04, ButtonA | ButtonUp})
		require.NoError(t, err)
		assert.Equal(t, uint32(0x01020304), in.Sequence)
		assert.Equal(t, ButtonA|ButtonUp, in.Buttons)
	})

	t.Run("TrailingBytesIgnored", func(t *testing.T) {
		in, err := DecodeInput([]byte{0, 0, 0, 9, 0xFF, 0xAA, 0xBB})
		require.NoError(t, err)
		assert.Equal(t, uint32(9), in.Sequence)
		assert.Equal(t, uint8(0xFF), in.Buttons)
	})

	t.Run("ShortPacket", func(t *testing.T) {
		for n := 0; n < InputSize; n++ {
			_, err := DecodeInput(make([]byte, n))
			assert.ErrorIs(t, err, ErrShortPacket, "length %d", n)
		}
	})
}

func TestEncodeInput(t *testing.T) {
	buf := make([]byte, 16)
	out, err := EncodeInput(buf, Input{Sequence: 0xDEADBEEF, Buttons: ButtonRight})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x80}, out)

	_, err = EncodeInput(make([]byte, 4), Input{})
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestEncodeOutput_Layout(t *testing.T) {
	out := &Output{Sequence: 7, Audio: 0x80000001, Music: MusicNone}
	out.Video[0][0] = 0x11
	out.Video[0][15] = 0x22
	out.Video[15][15] = 0x33

	buf := make([]byte, MaxDatagramSize)
	data, err := EncodeOutput(buf, out)
	require.NoError(t, err)
	require.Len(t, data, OutputSize)

	assert.Equal(t, []byte{0, 0, 0, 7}, data[0:4])
	assert.Equal(t, []byte{0x80, 0, 0, 1}, data[4:8])
	assert.Equal(t, byte(0xFF), data[8])
	assert.Equal(t, byte(0x11), data[9])
	assert.Equal(t, byte(0x22), data[9+15])
	assert.Equal(t, byte(0x33), data[OutputSize-1])
}

func TestEncodeOutput_ShortBuffer(t *testing.T) {
	_, err := EncodeOutput(make([]byte, OutputSize-1), &Output{})
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestOutputRoundTrip(t *testing.T) {
	out := &Output{Sequence: 0xFFFFFFFE, Audio: 0x0F0F0F0F, Music: 7}
	for row := 0; row < VideoRows; row++ {
		for col := 0; col < VideoCols; col++ {
			out.Video[row][col] = byte(row*VideoCols + col)
		}
	}

	buf := make([]byte, OutputSize)
	data, err := EncodeOutput(buf, out)
	require.NoError(t, err)

	got, err := DecodeOutput(data)
	require.NoError(t, err)
	assert.Equal(t, *out, got)
}

func TestDecodeOutput_ShortPacket(t *testing.T) {
	_, err := DecodeOutput(make([]byte, OutputSize-1))
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestPressed(t *testing.T) {
	assert.Equal(t, ButtonB, Pressed(ButtonA, ButtonA|ButtonB))
	assert.Equal(t, uint8(0), Pressed(ButtonA|ButtonB, ButtonA))
	assert.Equal(t, uint8(0xFF), Pressed(0, 0xFF))
}
