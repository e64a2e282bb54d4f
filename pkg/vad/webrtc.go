//go:build webrtcvad

package vad

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// WebRTCClassifier wraps the WebRTC VAD engine as a FrameClassifier.
// It only accepts the fixed (sample rate, frame duration) combinations
// the engine supports; callers validate those via ValidateFramePair
// before feeding frames.
type WebRTCClassifier struct {
	mu             sync.Mutex
	vad            *webrtcvad.VAD
	aggressiveness int
}

func newWebRTCClassifier(aggressiveness int) (FrameClassifier, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create webrtc vad: %w", err)
	}
	if err := v.SetMode(aggressiveness); err != nil {
		return nil, fmt.Errorf("failed to set webrtc vad mode: %w", err)
	}
	return &WebRTCClassifier{vad: v, aggressiveness: aggressiveness}, nil
}

// Classify implements FrameClassifier.
func (c *WebRTCClassifier) Classify(frame []byte, sampleRate int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// ValidRateAndFrameLength takes the sample count, not the byte count.
	if !c.vad.ValidRateAndFrameLength(sampleRate, len(frame)/2) {
		return false, fmt.Errorf("%w: webrtc vad rejects %d bytes at %d Hz",
			ErrInvalidConfig, len(frame), sampleRate)
	}
	active, err := c.vad.Process(sampleRate, frame)
	if err != nil {
		return false, fmt.Errorf("webrtc vad process: %w", err)
	}
	return active, nil
}

// SetAggressiveness implements FrameClassifier.
func (c *WebRTCClassifier) SetAggressiveness(aggressiveness int) error {
	if err := ValidateAggressiveness(aggressiveness); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.vad.SetMode(aggressiveness); err != nil {
		return fmt.Errorf("failed to set webrtc vad mode: %w", err)
	}
	c.aggressiveness = aggressiveness
	return nil
}

// Reset implements FrameClassifier. The WebRTC engine carries no
// cross-frame state worth clearing.
func (c *WebRTCClassifier) Reset() error { return nil }

// Close implements FrameClassifier.
func (c *WebRTCClassifier) Close() error { return nil }

var _ FrameClassifier = (*WebRTCClassifier)(nil)
