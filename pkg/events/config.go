package events

// Config is the wire shape of a session's detection configuration.
// Defaults, validation and merge semantics live in the session package;
// this package only defines the serialized form shared by the protocol
// and the service configuration file.
type Config struct {
	SampleRate         int     `json:"sample_rate" yaml:"sample_rate"`
	FrameDurationMs    int     `json:"frame_duration_ms" yaml:"frame_duration_ms"`
	UseEnergyMethod    bool    `json:"use_energy_method" yaml:"use_energy_method"`
	UseSecondaryMethod bool    `json:"use_secondary_method" yaml:"use_secondary_method"`
	Aggressiveness     int     `json:"aggressiveness" yaml:"aggressiveness"`
	EnergyWeight       float64 `json:"energy_weight" yaml:"energy_weight"`
	SecondaryWeight    float64 `json:"secondary_weight" yaml:"secondary_weight"`
	SilenceTimeoutMs   int     `json:"silence_timeout_ms" yaml:"silence_timeout_ms"`
	MinSpeakingTimeMs  int     `json:"min_speaking_time_ms" yaml:"min_speaking_time_ms"`

	RMS RMSConfig `json:"rms_config" yaml:"rms_config"`
}

// RMSConfig is the wire shape of the adaptive RMS calibrator settings.
type RMSConfig struct {
	InitialSensitivityFactor   float64 `json:"initial_sensitivity_factor" yaml:"initial_sensitivity_factor"`
	CalibrationDurationMs      int     `json:"calibration_duration_ms" yaml:"calibration_duration_ms"`
	RecalibrationIntervalMs    int     `json:"recalibration_interval_ms" yaml:"recalibration_interval_ms"`
	SilenceDurationForRecalMs  int     `json:"silence_duration_for_recal_ms" yaml:"silence_duration_for_recal_ms"`
	ConsecutiveFramesThreshold int     `json:"consecutive_frames_threshold" yaml:"consecutive_frames_threshold"`
}

// ConfigPatch is a partial Config for deep-merge updates. Only non-nil
// fields are applied; nested RMS fields merge individually, so updating
// one calibrator knob leaves the rest untouched.
type ConfigPatch struct {
	SampleRate         *int     `json:"sample_rate,omitempty"`
	FrameDurationMs    *int     `json:"frame_duration_ms,omitempty"`
	UseEnergyMethod    *bool    `json:"use_energy_method,omitempty"`
	UseSecondaryMethod *bool    `json:"use_secondary_method,omitempty"`
	Aggressiveness     *int     `json:"aggressiveness,omitempty"`
	EnergyWeight       *float64 `json:"energy_weight,omitempty"`
	SecondaryWeight    *float64 `json:"secondary_weight,omitempty"`
	SilenceTimeoutMs   *int     `json:"silence_timeout_ms,omitempty"`
	MinSpeakingTimeMs  *int     `json:"min_speaking_time_ms,omitempty"`

	RMS *RMSConfigPatch `json:"rms_config,omitempty"`
}

// RMSConfigPatch is the partial form of RMSConfig.
type RMSConfigPatch struct {
	InitialSensitivityFactor   *float64 `json:"initial_sensitivity_factor,omitempty"`
	CalibrationDurationMs      *int     `json:"calibration_duration_ms,omitempty"`
	RecalibrationIntervalMs    *int     `json:"recalibration_interval_ms,omitempty"`
	SilenceDurationForRecalMs  *int     `json:"silence_duration_for_recal_ms,omitempty"`
	ConsecutiveFramesThreshold *int     `json:"consecutive_frames_threshold,omitempty"`
}
