package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFramePair(t *testing.T) {
	for _, rate := range []int{8000, 16000, 32000, 48000} {
		for _, dur := range []int{10, 20, 30} {
			assert.NoError(t, ValidateFramePair(rate, dur), "rate=%d dur=%d", rate, dur)
		}
	}

	assert.ErrorIs(t, ValidateFramePair(44100, 30), ErrInvalidConfig)
	assert.ErrorIs(t, ValidateFramePair(16000, 25), ErrInvalidConfig)
	assert.ErrorIs(t, ValidateFramePair(0, 0), ErrInvalidConfig)
}

func TestValidateAggressiveness(t *testing.T) {
	for a := 0; a <= 3; a++ {
		assert.NoError(t, ValidateAggressiveness(a))
	}
	assert.ErrorIs(t, ValidateAggressiveness(-1), ErrInvalidConfig)
	assert.ErrorIs(t, ValidateAggressiveness(4), ErrInvalidConfig)
}

func TestClassifyEnsemble_WeightedFusion(t *testing.T) {
	cfg := EnsembleConfig{
		UseEnergy:       true,
		UseSecondary:    true,
		EnergyWeight:    0.3,
		SecondaryWeight: 0.7,
	}

	tests := []struct {
		name       string
		energy     bool
		secondary  bool
		wantSpeech bool
		wantConf   float64
	}{
		{"both agree on speech", true, true, true, 1.0},
		{"secondary alone carries", false, true, true, 0.7},
		{"energy alone falls short", true, false, false, 0.3},
		{"both agree on silence", false, false, false, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ClassifyEnsemble(tt.energy, tt.secondary, cfg)
			assert.Equal(t, tt.wantSpeech, d.IsSpeech)
			assert.InDelta(t, tt.wantConf, d.Confidence, 1e-9)
		})
	}
}

func TestClassifyEnsemble_SingleMethodDecidesAlone(t *testing.T) {
	energyOnly := EnsembleConfig{UseEnergy: true, EnergyWeight: 0.3}
	d := ClassifyEnsemble(true, false, energyOnly)
	assert.True(t, d.IsSpeech)
	assert.Equal(t, 1.0, d.Confidence)

	secondaryOnly := EnsembleConfig{UseSecondary: true, SecondaryWeight: 0.7}
	d = ClassifyEnsemble(true, false, secondaryOnly)
	assert.False(t, d.IsSpeech)

	d = ClassifyEnsemble(false, true, secondaryOnly)
	assert.True(t, d.IsSpeech)
}

func TestClassifyEnsemble_EqualWeightsTie(t *testing.T) {
	cfg := EnsembleConfig{
		UseEnergy:       true,
		UseSecondary:    true,
		EnergyWeight:    0.5,
		SecondaryWeight: 0.5,
	}
	// A single agreeing method at exactly 0.5 counts as speech.
	d := ClassifyEnsemble(true, false, cfg)
	assert.True(t, d.IsSpeech)
	assert.InDelta(t, 0.5, d.Confidence, 1e-9)
}
