// Package vad implements the adaptive ensemble voice activity detection
// core: an online noise calibrator with a dynamic threshold, a weighted
// ensemble of per-frame classifiers, and a debounced hysteresis state
// machine that turns noisy frame verdicts into stable speaking/silent
// state.
package vad

import (
	"time"

	"github.com/voicebridge/vad-engine/pkg/audio"
)

// Fallback profile used when calibration closes with too few samples.
// Matches a quiet room at normalized RMS scale.
const (
	defaultNoiseFloor = 0.02
	defaultStdDev     = 0.01
)

// CalibratorConfig controls noise floor estimation and adaptation.
type CalibratorConfig struct {
	// InitialSensitivityFactor is the starting multiplier on the standard
	// deviation when deriving the decision threshold.
	InitialSensitivityFactor float64

	// MinSensitivityFactor and MaxSensitivityFactor bound self-tuning.
	MinSensitivityFactor float64
	MaxSensitivityFactor float64

	// CalibrationDuration is the length of the initial sampling window.
	CalibrationDuration time.Duration

	// RecalibrationInterval is the minimum time between silence-driven
	// recalibrations.
	RecalibrationInterval time.Duration

	// SilenceDurationForRecal is how long continuous silence must last
	// before a recalibration is considered.
	SilenceDurationForRecal time.Duration

	// MaxSampleHistory bounds the level history ring.
	MaxSampleHistory int

	// SmoothingFactor is the EMA alpha applied to the noise floor for
	// sub-threshold samples.
	SmoothingFactor float64

	// MinCalibrationSamples is the minimum sample count for a
	// statistically derived profile; below it the fallback profile is
	// used.
	MinCalibrationSamples int
}

// DefaultCalibratorConfig returns the standard calibrator settings.
func DefaultCalibratorConfig() CalibratorConfig {
	return CalibratorConfig{
		InitialSensitivityFactor: 1.5,
		MinSensitivityFactor:     1.2,
		MaxSensitivityFactor:     2.0,
		CalibrationDuration:      2000 * time.Millisecond,
		RecalibrationInterval:    5000 * time.Millisecond,
		SilenceDurationForRecal:  2000 * time.Millisecond,
		MaxSampleHistory:         50,
		SmoothingFactor:          0.1,
		MinCalibrationSamples:    5,
	}
}

// NoiseProfile is a snapshot of the calibrator state, reported to
// clients in vad_initialized and calibration_complete events.
type NoiseProfile struct {
	NoiseFloor          float64 `json:"noise_floor"`
	StdDev              float64 `json:"std_dev"`
	SensitivityFactor   float64 `json:"sensitivity_factor"`
	SampleCount         int     `json:"sample_count"`
	LastCalibrationTime int64   `json:"last_calibration_time"`
	CalibrationComplete bool    `json:"calibration_complete"`
}

// Calibrator maintains the per-session ambient noise estimate and the
// dynamic decision threshold derived from it.
//
// Calibrator is not goroutine safe; each session drives one calibrator
// from its processing goroutine.
type Calibrator struct {
	cfg CalibratorConfig

	history *audio.LevelRing

	noiseFloor  float64
	stdDev      float64
	sensitivity float64

	calibrating      bool
	complete         bool
	calibrationStart time.Time
	lastCalibration  time.Time
	lastSpeech       time.Time
	silenceSince     time.Time
}

// NewCalibrator creates a calibrator already in its calibration phase,
// anchored at now.
func NewCalibrator(cfg CalibratorConfig, now time.Time) *Calibrator {
	c := &Calibrator{
		cfg:         cfg,
		history:     audio.NewLevelRing(cfg.MaxSampleHistory),
		sensitivity: cfg.InitialSensitivityFactor,
	}
	c.startCalibration(now)
	return c
}

func (c *Calibrator) startCalibration(now time.Time) {
	c.calibrating = true
	c.complete = false
	c.history.Reset()
	c.calibrationStart = now
	c.lastCalibration = now
	c.silenceSince = now
}

// Calibrating reports whether the initial (or a forced) calibration
// window is still open.
func (c *Calibrator) Calibrating() bool { return c.calibrating }

// Threshold returns the current dynamic decision threshold.
func (c *Calibrator) Threshold() float64 {
	return c.noiseFloor + c.stdDev*c.sensitivity
}

// Update consumes one frame level during the calibration phase and
// reports whether calibration just completed. Calling Update outside the
// calibration phase is a no-op returning false.
func (c *Calibrator) Update(level float64, now time.Time) bool {
	if !c.calibrating {
		return false
	}
	c.history.Push(level)
	if now.Sub(c.calibrationStart) < c.cfg.CalibrationDuration {
		return false
	}
	c.completeCalibration(now)
	return true
}

// ForceComplete closes the calibration window immediately with whatever
// samples were collected. Used when the timed window elapses without
// enough frames arriving, so calibration never blocks indefinitely.
func (c *Calibrator) ForceComplete(now time.Time) bool {
	if !c.calibrating {
		return false
	}
	c.completeCalibration(now)
	return true
}

func (c *Calibrator) completeCalibration(now time.Time) {
	values := c.history.Values()
	if len(values) >= c.cfg.MinCalibrationSamples {
		c.noiseFloor = audio.Mean(values)
		c.stdDev = audio.StdDev(values)
		if c.stdDev == 0 {
			c.stdDev = defaultStdDev
		}
	} else {
		c.noiseFloor = defaultNoiseFloor
		c.stdDev = defaultStdDev
	}
	c.calibrating = false
	c.complete = true
	c.lastCalibration = now
	c.silenceSince = now
}

// Observe consumes one post-calibration frame level together with its
// ensemble speech verdict. Speech-classified samples never move the
// noise floor, which prevents loud speech from inflating the threshold
// until everything reads as silence.
func (c *Calibrator) Observe(level float64, isSpeech bool, now time.Time) {
	if c.calibrating {
		return
	}
	c.history.Push(level)

	if isSpeech {
		c.lastSpeech = now
		c.silenceSince = now
		return
	}

	// Silence-driven recalibration: a long quiet stretch gives a better
	// reading of the ambient floor than incremental smoothing.
	if now.Sub(c.silenceSince) > c.cfg.SilenceDurationForRecal &&
		now.Sub(c.lastCalibration) > c.cfg.RecalibrationInterval {
		c.recalibrateFromRecentSilence(now)
	}

	// Track ambient drift for plausibly non-speech samples only.
	if level < c.noiseFloor*1.5 {
		alpha := c.cfg.SmoothingFactor
		c.noiseFloor = alpha*level + (1-alpha)*c.noiseFloor
		c.updateStdDevFromSilence()
	}

	c.adjustSensitivity()
}

// recalibrateFromRecentSilence recomputes the profile from the most
// recent silent window.
func (c *Calibrator) recalibrateFromRecentSilence(now time.Time) {
	recent := c.history.Last(20)
	if len(recent) < c.cfg.MinCalibrationSamples {
		return
	}
	c.noiseFloor = audio.Mean(recent)
	if sd := audio.StdDev(recent); sd > 0 {
		c.stdDev = sd
	} else {
		c.stdDev = defaultStdDev
	}
	c.lastCalibration = now
}

// updateStdDevFromSilence re-estimates the spread from recent
// sub-threshold samples.
func (c *Calibrator) updateStdDevFromSilence() {
	recent := c.history.Last(10)
	if len(recent) < 10 {
		return
	}
	threshold := c.Threshold()
	silent := make([]float64, 0, len(recent))
	for _, v := range recent {
		if v < threshold {
			silent = append(silent, v)
		}
	}
	if len(silent) >= 5 {
		if sd := audio.StdDev(silent); sd > 0 {
			c.stdDev = sd
		}
	}
}

// adjustSensitivity tunes the sensitivity factor from the coefficient of
// variation of recent levels: noisy environments get a higher factor
// (fewer false positives), stable ones a lower factor (more sensitive).
func (c *Calibrator) adjustSensitivity() {
	recent := c.history.Last(10)
	if len(recent) < 10 {
		return
	}
	mean := audio.Mean(recent)
	if mean <= 0 {
		return
	}
	variation := audio.StdDev(recent) / mean
	switch {
	case variation > 0.5:
		c.sensitivity = min(c.cfg.MaxSensitivityFactor, c.sensitivity+0.05)
	case variation < 0.2:
		c.sensitivity = max(c.cfg.MinSensitivityFactor, c.sensitivity-0.05)
	}
}

// SetConfig replaces the calibrator settings. The sample history and
// the current profile are kept; the new timing and smoothing values
// apply from the next observation. The sensitivity factor is re-clamped
// into the new bounds.
func (c *Calibrator) SetConfig(cfg CalibratorConfig) {
	c.cfg = cfg
	if c.sensitivity < cfg.MinSensitivityFactor {
		c.sensitivity = cfg.MinSensitivityFactor
	}
	if c.sensitivity > cfg.MaxSensitivityFactor {
		c.sensitivity = cfg.MaxSensitivityFactor
	}
}

// ForceRecalibration clears the history and restarts the timed
// calibration phase.
func (c *Calibrator) ForceRecalibration(now time.Time) {
	c.startCalibration(now)
}

// Profile returns a snapshot of the current noise profile.
func (c *Calibrator) Profile() NoiseProfile {
	return NoiseProfile{
		NoiseFloor:          c.noiseFloor,
		StdDev:              c.stdDev,
		SensitivityFactor:   c.sensitivity,
		SampleCount:         c.history.Len(),
		LastCalibrationTime: c.lastCalibration.UnixMilli(),
		CalibrationComplete: c.complete,
	}
}
