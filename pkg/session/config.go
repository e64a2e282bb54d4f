// Package session owns the per-client VAD pipeline: one isolated
// calibrator + classifier + state machine per session, a registry with
// idle eviction, and the actor loop that keeps frames for a session in
// strict arrival order.
package session

import (
	"fmt"
	"time"

	"github.com/voicebridge/vad-engine/pkg/events"
	"github.com/voicebridge/vad-engine/pkg/vad"
)

// DefaultConfig returns the default session detection configuration.
// Ensemble weights favor the secondary classifier; the RMS defaults
// mirror the calibrator's.
func DefaultConfig() events.Config {
	return events.Config{
		SampleRate:         16000,
		FrameDurationMs:    30,
		UseEnergyMethod:    true,
		UseSecondaryMethod: true,
		Aggressiveness:     2,
		EnergyWeight:       0.3,
		SecondaryWeight:    0.7,
		SilenceTimeoutMs:   600,
		MinSpeakingTimeMs:  300,
		RMS: events.RMSConfig{
			InitialSensitivityFactor:   1.5,
			CalibrationDurationMs:      2000,
			RecalibrationIntervalMs:    5000,
			SilenceDurationForRecalMs:  2000,
			ConsecutiveFramesThreshold: 2,
		},
	}
}

// Validate rejects configurations the pipeline cannot honor. The
// (sample rate, frame duration) pair is checked unconditionally: even
// with the secondary method disabled, accepting a pair it cannot handle
// would make a later enable silently wrong.
func Validate(cfg events.Config) error {
	if err := vad.ValidateFramePair(cfg.SampleRate, cfg.FrameDurationMs); err != nil {
		return err
	}
	if err := vad.ValidateAggressiveness(cfg.Aggressiveness); err != nil {
		return err
	}
	if cfg.EnergyWeight < 0 || cfg.SecondaryWeight < 0 {
		return fmt.Errorf("%w: negative ensemble weight", vad.ErrInvalidConfig)
	}
	if !cfg.UseEnergyMethod && !cfg.UseSecondaryMethod {
		return fmt.Errorf("%w: at least one detection method must be enabled", vad.ErrInvalidConfig)
	}
	if cfg.SilenceTimeoutMs <= 0 {
		return fmt.Errorf("%w: silence_timeout_ms must be positive", vad.ErrInvalidConfig)
	}
	if cfg.MinSpeakingTimeMs < 0 {
		return fmt.Errorf("%w: min_speaking_time_ms must not be negative", vad.ErrInvalidConfig)
	}
	if cfg.RMS.CalibrationDurationMs <= 0 {
		return fmt.Errorf("%w: calibration_duration_ms must be positive", vad.ErrInvalidConfig)
	}
	if cfg.RMS.InitialSensitivityFactor <= 0 {
		return fmt.Errorf("%w: initial_sensitivity_factor must be positive", vad.ErrInvalidConfig)
	}
	if cfg.RMS.ConsecutiveFramesThreshold < 1 {
		return fmt.Errorf("%w: consecutive_frames_threshold must be at least 1", vad.ErrInvalidConfig)
	}
	return nil
}

// Merge applies a partial update onto cfg, field by field, returning
// the merged result. Nested RMS fields merge individually so unrelated
// settings survive. Aggressiveness is clamped to [0,3] rather than
// rejected.
func Merge(cfg events.Config, p events.ConfigPatch) events.Config {
	if p.SampleRate != nil {
		cfg.SampleRate = *p.SampleRate
	}
	if p.FrameDurationMs != nil {
		cfg.FrameDurationMs = *p.FrameDurationMs
	}
	if p.UseEnergyMethod != nil {
		cfg.UseEnergyMethod = *p.UseEnergyMethod
	}
	if p.UseSecondaryMethod != nil {
		cfg.UseSecondaryMethod = *p.UseSecondaryMethod
	}
	if p.Aggressiveness != nil {
		cfg.Aggressiveness = clampInt(*p.Aggressiveness, 0, 3)
	}
	if p.EnergyWeight != nil {
		cfg.EnergyWeight = *p.EnergyWeight
	}
	if p.SecondaryWeight != nil {
		cfg.SecondaryWeight = *p.SecondaryWeight
	}
	if p.SilenceTimeoutMs != nil {
		cfg.SilenceTimeoutMs = *p.SilenceTimeoutMs
	}
	if p.MinSpeakingTimeMs != nil {
		cfg.MinSpeakingTimeMs = *p.MinSpeakingTimeMs
	}
	if p.RMS != nil {
		if p.RMS.InitialSensitivityFactor != nil {
			cfg.RMS.InitialSensitivityFactor = *p.RMS.InitialSensitivityFactor
		}
		if p.RMS.CalibrationDurationMs != nil {
			cfg.RMS.CalibrationDurationMs = *p.RMS.CalibrationDurationMs
		}
		if p.RMS.RecalibrationIntervalMs != nil {
			cfg.RMS.RecalibrationIntervalMs = *p.RMS.RecalibrationIntervalMs
		}
		if p.RMS.SilenceDurationForRecalMs != nil {
			cfg.RMS.SilenceDurationForRecalMs = *p.RMS.SilenceDurationForRecalMs
		}
		if p.RMS.ConsecutiveFramesThreshold != nil {
			cfg.RMS.ConsecutiveFramesThreshold = *p.RMS.ConsecutiveFramesThreshold
		}
	}
	return cfg
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// calibratorConfig maps the wire config onto the calibrator settings.
func calibratorConfig(cfg events.Config) vad.CalibratorConfig {
	c := vad.DefaultCalibratorConfig()
	c.InitialSensitivityFactor = cfg.RMS.InitialSensitivityFactor
	c.CalibrationDuration = time.Duration(cfg.RMS.CalibrationDurationMs) * time.Millisecond
	c.RecalibrationInterval = time.Duration(cfg.RMS.RecalibrationIntervalMs) * time.Millisecond
	c.SilenceDurationForRecal = time.Duration(cfg.RMS.SilenceDurationForRecalMs) * time.Millisecond
	return c
}

// machineConfig maps the wire config onto the hysteresis settings.
func machineConfig(cfg events.Config) vad.MachineConfig {
	m := vad.DefaultMachineConfig()
	m.ConsecutiveSpeechFrames = cfg.RMS.ConsecutiveFramesThreshold
	m.ConsecutiveSilenceFrames = cfg.RMS.ConsecutiveFramesThreshold
	m.MinSpeakingTime = time.Duration(cfg.MinSpeakingTimeMs) * time.Millisecond
	m.SilenceTimeout = time.Duration(cfg.SilenceTimeoutMs) * time.Millisecond
	return m
}
