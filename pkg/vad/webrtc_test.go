//go:build webrtcvad

package vad

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmFrame(samples int, amplitude int16) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(amplitude))
	}
	return buf
}

func TestWebRTCClassifier_AcceptsSupportedFrameGeometry(t *testing.T) {
	c, err := newWebRTCClassifier(2)
	require.NoError(t, err)
	defer c.Close()

	// 16kHz at 10/20/30ms: 160/320/480 samples, twice that in bytes.
	for _, samples := range []int{160, 320, 480} {
		_, err := c.Classify(pcmFrame(samples, 1000), 16000)
		assert.NoError(t, err, "%d samples at 16000 Hz", samples)
	}

	// 8kHz at 30ms.
	_, err = c.Classify(pcmFrame(240, 1000), 8000)
	assert.NoError(t, err)
}

func TestWebRTCClassifier_RejectsBadFrameGeometry(t *testing.T) {
	c, err := newWebRTCClassifier(2)
	require.NoError(t, err)
	defer c.Close()

	// 15ms at 16kHz is not a supported duration.
	_, err = c.Classify(pcmFrame(240, 1000), 16000)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWebRTCClassifier_SetAggressiveness(t *testing.T) {
	c, err := newWebRTCClassifier(0)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetAggressiveness(3))
	assert.Error(t, c.SetAggressiveness(4))
}
