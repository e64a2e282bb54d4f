package vad

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks configuration that the engine refuses to apply.
// Invalid updates are rejected outright rather than coerced, so a
// session never silently runs with parameters its secondary classifier
// cannot handle.
var ErrInvalidConfig = errors.New("vad: invalid configuration")

// Supported (sample rate, frame duration) combinations of the secondary
// fixed-frame classifier.
var (
	validSampleRates    = map[int]bool{8000: true, 16000: true, 32000: true, 48000: true}
	validFrameDurations = map[int]bool{10: true, 20: true, 30: true}
)

// ValidateFramePair checks a (sample rate, frame duration) combination
// against what the secondary classifier supports.
func ValidateFramePair(sampleRate, frameDurationMs int) error {
	if !validSampleRates[sampleRate] {
		return fmt.Errorf("%w: unsupported sample rate %d (want 8000, 16000, 32000 or 48000)",
			ErrInvalidConfig, sampleRate)
	}
	if !validFrameDurations[frameDurationMs] {
		return fmt.Errorf("%w: unsupported frame duration %dms (want 10, 20 or 30)",
			ErrInvalidConfig, frameDurationMs)
	}
	return nil
}

// ValidateAggressiveness checks the secondary classifier mode.
func ValidateAggressiveness(aggressiveness int) error {
	if aggressiveness < 0 || aggressiveness > 3 {
		return fmt.Errorf("%w: aggressiveness %d out of range [0,3]", ErrInvalidConfig, aggressiveness)
	}
	return nil
}

// EnsembleConfig selects and weights the fused detection methods.
// Weights need not sum to 1.
type EnsembleConfig struct {
	UseEnergy       bool
	UseSecondary    bool
	EnergyWeight    float64
	SecondaryWeight float64
}

// Decision is the fused per-frame verdict.
type Decision struct {
	IsSpeech   bool
	Confidence float64
}

// ClassifyEnsemble fuses the energy-threshold verdict and the secondary
// classifier verdict into a weighted decision. When only one method is
// enabled it decides alone with weight 1.
func ClassifyEnsemble(energy, secondary bool, cfg EnsembleConfig) Decision {
	var confidence float64
	switch {
	case cfg.UseEnergy && cfg.UseSecondary:
		if energy {
			confidence += cfg.EnergyWeight
		}
		if secondary {
			confidence += cfg.SecondaryWeight
		}
	case cfg.UseEnergy:
		if energy {
			confidence = 1
		}
	case cfg.UseSecondary:
		if secondary {
			confidence = 1
		}
	}
	return Decision{
		IsSpeech:   confidence >= 0.5,
		Confidence: confidence,
	}
}
