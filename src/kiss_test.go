package borzoi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestKissEncapsulate(t *testing.T) {
	var wire = kiss_encapsulate(0, []byte{0x01, 0x02})
	assert.Equal(t, []byte{FEND, 0x00, 0x01, 0x02, FEND}, wire)

	// FEND and FESC in the data are escaped.
	wire = kiss_encapsulate(0, []byte{FEND, FESC})
	assert.Equal(t, []byte{FEND, 0x00, FESC, TFEND, FESC, TFESC, FEND}, wire)

	// Port number lands in the high nibble.
	wire = kiss_encapsulate(3, []byte{0x01})
	assert.Equal(t, byte(0x30), wire[1])
}

func TestKissDecode(t *testing.T) {
	var kd kiss_decoder_t
	var frames [][]byte
	var emit = func(frame []byte) {
		frames = append(frames, frame)
	}

	kd.kiss_decode(kiss_encapsulate(0, []byte{0x01, FEND, 0x02}), emit)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x01, FEND, 0x02}, frames[0])
}

func TestKissDecodeSplitChunks(t *testing.T) {
	var kd kiss_decoder_t
	var frames [][]byte
	var emit = func(frame []byte) {
		frames = append(frames, frame)
	}

	var wire = kiss_encapsulate(0, []byte{0x10, 0x20, 0x30})
	for _, b := range wire {
		kd.kiss_decode([]byte{b}, emit)
	}
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x10, 0x20, 0x30}, frames[0])
}

func TestKissDecodeIgnoresNoise(t *testing.T) {
	var kd kiss_decoder_t
	var frames [][]byte
	var emit = func(frame []byte) {
		frames = append(frames, frame)
	}

	// Garbage before the first FEND, then empty frames, then data.
	kd.kiss_decode([]byte{0x55, 0xAA, FEND, FEND, FEND}, emit)
	assert.Empty(t, frames)

	kd.kiss_decode(kiss_encapsulate(0, []byte{0x42}), emit)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x42}, frames[0])
}

func TestKissRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var data = rapid.SliceOfN(rapid.Byte(), 1, 512).Draw(t, "data")

		var kd kiss_decoder_t
		var frames [][]byte
		kd.kiss_decode(kiss_encapsulate(0, data), func(frame []byte) {
			frames = append(frames, frame)
		})
		require.Len(t, frames, 1)
		assert.Equal(t, data, frames[0])
	})
}
