package vad

import (
	"sync"

	"github.com/voicebridge/vad-engine/pkg/audio"
)

// Absolute RMS gates per aggressiveness level, tuned against normalized
// 0..1 levels. Higher aggressiveness demands more energy before a frame
// counts as speech.
var energyGates = [4]float64{0.008, 0.012, 0.018, 0.028}

// EnergyBurstClassifier is the local FrameClassifier: a fixed-gate RMS
// heuristic with light smoothing. It is the fallback when the WebRTC
// backend is not compiled in, and the "simpler local heuristic" clients
// degrade to when the remote engine keeps failing.
type EnergyBurstClassifier struct {
	mu             sync.Mutex
	aggressiveness int
	smoothed       float64
	primed         bool
}

// NewEnergyBurstClassifier creates the local classifier.
func NewEnergyBurstClassifier(aggressiveness int) (*EnergyBurstClassifier, error) {
	if err := ValidateAggressiveness(aggressiveness); err != nil {
		return nil, err
	}
	return &EnergyBurstClassifier{aggressiveness: aggressiveness}, nil
}

// Classify implements FrameClassifier.
func (c *EnergyBurstClassifier) Classify(frame []byte, sampleRate int) (bool, error) {
	samples, err := audio.DecodePCM16(frame)
	if err != nil {
		return false, err
	}
	level := audio.RMS(samples)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Light smoothing so a single hot sample does not flip the verdict.
	if !c.primed {
		c.smoothed = level
		c.primed = true
	} else {
		c.smoothed = 0.3*level + 0.7*c.smoothed
	}
	return c.smoothed > energyGates[c.aggressiveness], nil
}

// SetAggressiveness implements FrameClassifier.
func (c *EnergyBurstClassifier) SetAggressiveness(aggressiveness int) error {
	if err := ValidateAggressiveness(aggressiveness); err != nil {
		return err
	}
	c.mu.Lock()
	c.aggressiveness = aggressiveness
	c.mu.Unlock()
	return nil
}

// Reset implements FrameClassifier.
func (c *EnergyBurstClassifier) Reset() error {
	c.mu.Lock()
	c.smoothed = 0
	c.primed = false
	c.mu.Unlock()
	return nil
}

// Close implements FrameClassifier.
func (c *EnergyBurstClassifier) Close() error { return nil }

var _ FrameClassifier = (*EnergyBurstClassifier)(nil)
