package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/vad-engine/pkg/events"
	"github.com/voicebridge/vad-engine/pkg/vad"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, Validate(DefaultConfig()))
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*events.Config)
	}{
		{"unsupported sample rate", func(c *events.Config) { c.SampleRate = 44100 }},
		{"unsupported frame duration", func(c *events.Config) { c.FrameDurationMs = 25 }},
		{"aggressiveness too high", func(c *events.Config) { c.Aggressiveness = 4 }},
		{"negative energy weight", func(c *events.Config) { c.EnergyWeight = -0.1 }},
		{"negative secondary weight", func(c *events.Config) { c.SecondaryWeight = -1 }},
		{"no method enabled", func(c *events.Config) {
			c.UseEnergyMethod = false
			c.UseSecondaryMethod = false
		}},
		{"zero silence timeout", func(c *events.Config) { c.SilenceTimeoutMs = 0 }},
		{"negative min speaking time", func(c *events.Config) { c.MinSpeakingTimeMs = -1 }},
		{"zero calibration duration", func(c *events.Config) { c.RMS.CalibrationDurationMs = 0 }},
		{"zero consecutive threshold", func(c *events.Config) { c.RMS.ConsecutiveFramesThreshold = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, Validate(cfg), vad.ErrInvalidConfig)
		})
	}
}

func TestMerge_PreservesUntouchedFields(t *testing.T) {
	base := DefaultConfig()
	merged := Merge(base, events.ConfigPatch{
		SilenceTimeoutMs: intPtr(900),
		RMS: &events.RMSConfigPatch{
			CalibrationDurationMs: intPtr(1500),
		},
	})

	assert.Equal(t, 900, merged.SilenceTimeoutMs)
	assert.Equal(t, 1500, merged.RMS.CalibrationDurationMs)

	// Everything not named in the patch stays put, including nested
	// siblings of the patched RMS field.
	assert.Equal(t, base.SampleRate, merged.SampleRate)
	assert.Equal(t, base.Aggressiveness, merged.Aggressiveness)
	assert.Equal(t, base.RMS.RecalibrationIntervalMs, merged.RMS.RecalibrationIntervalMs)
	assert.Equal(t, base.RMS.InitialSensitivityFactor, merged.RMS.InitialSensitivityFactor)
	assert.Equal(t, base.MinSpeakingTimeMs, merged.MinSpeakingTimeMs)
}

func TestMerge_ClampsAggressiveness(t *testing.T) {
	merged := Merge(DefaultConfig(), events.ConfigPatch{Aggressiveness: intPtr(9)})
	assert.Equal(t, 3, merged.Aggressiveness)

	merged = Merge(DefaultConfig(), events.ConfigPatch{Aggressiveness: intPtr(-2)})
	assert.Equal(t, 0, merged.Aggressiveness)
}

func TestMerge_AllScalarFields(t *testing.T) {
	merged := Merge(DefaultConfig(), events.ConfigPatch{
		SampleRate:         intPtr(8000),
		FrameDurationMs:    intPtr(10),
		UseEnergyMethod:    boolPtr(false),
		UseSecondaryMethod: boolPtr(true),
		EnergyWeight:       floatPtr(0.5),
		SecondaryWeight:    floatPtr(0.5),
		MinSpeakingTimeMs:  intPtr(200),
	})

	assert.Equal(t, 8000, merged.SampleRate)
	assert.Equal(t, 10, merged.FrameDurationMs)
	assert.False(t, merged.UseEnergyMethod)
	assert.Equal(t, 0.5, merged.EnergyWeight)
	assert.Equal(t, 200, merged.MinSpeakingTimeMs)
	require.NoError(t, Validate(merged))
}

func TestConfigMappings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RMS.CalibrationDurationMs = 1500
	cfg.SilenceTimeoutMs = 900
	cfg.MinSpeakingTimeMs = 250
	cfg.RMS.ConsecutiveFramesThreshold = 3

	cc := calibratorConfig(cfg)
	assert.Equal(t, int64(1500), cc.CalibrationDuration.Milliseconds())
	assert.Equal(t, 1.5, cc.InitialSensitivityFactor)

	mc := machineConfig(cfg)
	assert.Equal(t, 3, mc.ConsecutiveSpeechFrames)
	assert.Equal(t, 3, mc.ConsecutiveSilenceFrames)
	assert.Equal(t, int64(900), mc.SilenceTimeout.Milliseconds())
	assert.Equal(t, int64(250), mc.MinSpeakingTime.Milliseconds())
}
