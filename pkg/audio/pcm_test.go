package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func TestFrameGeometry(t *testing.T) {
	assert.Equal(t, 960, FrameBytes(16000, 30))
	assert.Equal(t, 480, FrameSamples(16000, 30))
	assert.Equal(t, 160, FrameBytes(8000, 10))
	assert.Equal(t, 2880, FrameBytes(48000, 30))
}

func TestDecodePCM16(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	samples, err := DecodePCM16(encodePCM(in))
	require.NoError(t, err)
	assert.Equal(t, in, samples)
}

func TestDecodePCM16_OddLength(t *testing.T) {
	_, err := DecodePCM16([]byte{0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrOddPayload)
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	assert.Equal(t, 0.0, RMS([]int16{0, 0, 0}))

	// Constant half-scale signal has RMS 0.5.
	samples := make([]int16, 480)
	for i := range samples {
		samples[i] = 16384
	}
	assert.InDelta(t, 0.5, RMS(samples), 1e-4)
}

func TestSplitFrames(t *testing.T) {
	data := make([]byte, 250)
	frames := SplitFrames(data, 100)
	require.Len(t, frames, 2)
	assert.Len(t, frames[0], 100)
	assert.Len(t, frames[1], 100)

	assert.Nil(t, SplitFrames(data, 0))
	assert.Empty(t, SplitFrames(data[:50], 100))
}

func TestMeanStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(values), 1e-9)
	assert.InDelta(t, 2.138, StdDev(values), 1e-3)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev([]float64{1}))
}
