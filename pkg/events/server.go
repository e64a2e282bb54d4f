package events

import (
	"github.com/google/uuid"

	"github.com/voicebridge/vad-engine/pkg/vad"
)

// ServerEventType represents the type of server event.
type ServerEventType string

const (
	ServerEventTypeConnected           ServerEventType = "connected"
	ServerEventTypeVADInitialized      ServerEventType = "vad_initialized"
	ServerEventTypeVADResult           ServerEventType = "vad_result"
	ServerEventTypeSpeechStart         ServerEventType = "speech_start"
	ServerEventTypeSpeechEnd           ServerEventType = "speech_end"
	ServerEventTypeCalibrationStarted  ServerEventType = "calibration_started"
	ServerEventTypeCalibrationComplete ServerEventType = "calibration_complete"
	ServerEventTypeConfigUpdated       ServerEventType = "config_updated"
	ServerEventTypeDebugState          ServerEventType = "debug_state"
	ServerEventTypeError               ServerEventType = "error"
)

// ServerEvent is the interface for all server events.
type ServerEvent interface {
	ServerEventType() ServerEventType
	GetEventID() string
}

// BaseServerEvent contains common fields for all server events.
type BaseServerEvent struct {
	EventID string          `json:"event_id"`
	Type    ServerEventType `json:"type"`
}

func (e BaseServerEvent) ServerEventType() ServerEventType {
	return e.Type
}

func (e BaseServerEvent) GetEventID() string {
	return e.EventID
}

// NewBaseServerEvent creates a new base server event with a generated
// event ID.
func NewBaseServerEvent(eventType ServerEventType) BaseServerEvent {
	return BaseServerEvent{
		EventID: "evt_" + uuid.New().String()[:8],
		Type:    eventType,
	}
}

// ConnectedEvent greets a client after the transport is established.
type ConnectedEvent struct {
	BaseServerEvent
	Status string `json:"status"`
	SID    string `json:"sid,omitempty"`
}

func NewConnectedEvent(sid string) *ConnectedEvent {
	return &ConnectedEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeConnected),
		Status:          "connected",
		SID:             sid,
	}
}

// VADInitializedEvent acknowledges an init, reporting the session id,
// its noise profile and its effective configuration. IsNew is false
// when an existing session was resumed.
type VADInitializedEvent struct {
	BaseServerEvent
	SessionID    string           `json:"session_id"`
	IsNew        bool             `json:"is_new"`
	NoiseProfile vad.NoiseProfile `json:"noise_profile"`
	Config       Config           `json:"config"`
}

func NewVADInitializedEvent(sessionID string, isNew bool, profile vad.NoiseProfile, cfg Config) *VADInitializedEvent {
	return &VADInitializedEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeVADInitialized),
		SessionID:       sessionID,
		IsNew:           isNew,
		NoiseProfile:    profile,
		Config:          cfg,
	}
}

// VADResultEvent is the per-frame verdict.
type VADResultEvent struct {
	BaseServerEvent
	SessionID string  `json:"session_id"`
	IsSpeech  bool    `json:"is_speech"`
	RMSLevel  float64 `json:"rms_level"`
	Threshold float64 `json:"threshold"`
	Timestamp int64   `json:"timestamp"`
}

func NewVADResultEvent(sessionID string, isSpeech bool, rmsLevel, threshold float64, timestampMs int64) *VADResultEvent {
	return &VADResultEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeVADResult),
		SessionID:       sessionID,
		IsSpeech:        isSpeech,
		RMSLevel:        rmsLevel,
		Threshold:       threshold,
		Timestamp:       timestampMs,
	}
}

// SpeechStartEvent is emitted when a speech episode is confirmed.
type SpeechStartEvent struct {
	BaseServerEvent
	SessionID  string  `json:"session_id"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"timestamp"`
}

func NewSpeechStartEvent(sessionID string, confidence float64, timestampMs int64) *SpeechStartEvent {
	return &SpeechStartEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeSpeechStart),
		SessionID:       sessionID,
		Confidence:      confidence,
		Timestamp:       timestampMs,
	}
}

// SpeechEndEvent is emitted exactly once when a speech episode ends.
type SpeechEndEvent struct {
	BaseServerEvent
	SessionID  string `json:"session_id"`
	DurationMs int64  `json:"duration_ms"`
	Timestamp  int64  `json:"timestamp"`
}

func NewSpeechEndEvent(sessionID string, durationMs, timestampMs int64) *SpeechEndEvent {
	return &SpeechEndEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeSpeechEnd),
		SessionID:       sessionID,
		DurationMs:      durationMs,
		Timestamp:       timestampMs,
	}
}

// CalibrationStartedEvent signals that the noise profile is being
// (re)established.
type CalibrationStartedEvent struct {
	BaseServerEvent
	SessionID string `json:"session_id"`
}

func NewCalibrationStartedEvent(sessionID string) *CalibrationStartedEvent {
	return &CalibrationStartedEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeCalibrationStarted),
		SessionID:       sessionID,
	}
}

// CalibrationCompleteEvent carries the freshly established noise
// profile.
type CalibrationCompleteEvent struct {
	BaseServerEvent
	SessionID    string           `json:"session_id"`
	NoiseProfile vad.NoiseProfile `json:"noise_profile"`
}

func NewCalibrationCompleteEvent(sessionID string, profile vad.NoiseProfile) *CalibrationCompleteEvent {
	return &CalibrationCompleteEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeCalibrationComplete),
		SessionID:       sessionID,
		NoiseProfile:    profile,
	}
}

// ConfigUpdatedEvent acknowledges a successful config merge with the
// full effective configuration.
type ConfigUpdatedEvent struct {
	BaseServerEvent
	SessionID string `json:"session_id"`
	Config    Config `json:"config"`
}

func NewConfigUpdatedEvent(sessionID string, cfg Config) *ConfigUpdatedEvent {
	return &ConfigUpdatedEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeConfigUpdated),
		SessionID:       sessionID,
		Config:          cfg,
	}
}

// DebugState is a read-only introspection snapshot of one session.
type DebugState struct {
	SessionID               string           `json:"session_id"`
	CreatedAt               int64            `json:"created_at"`
	LastActivity            int64            `json:"last_activity"`
	MachineState            string           `json:"machine_state"`
	IsSpeaking              bool             `json:"is_speaking"`
	TotalFrames             uint64           `json:"total_frames"`
	SpeechFrames            uint64           `json:"speech_frames"`
	SpeechRatio             float64          `json:"speech_ratio"`
	ConsecutiveSpeechFrames int              `json:"consecutive_speech_frames"`
	ConsecutiveSilentFrames int              `json:"consecutive_silent_frames"`
	Threshold               float64          `json:"threshold"`
	NoiseProfile            vad.NoiseProfile `json:"noise_profile"`
	Config                  Config           `json:"config"`
}

// DebugStateEvent wraps a DebugState snapshot.
type DebugStateEvent struct {
	BaseServerEvent
	State DebugState `json:"state"`
}

func NewDebugStateEvent(state DebugState) *DebugStateEvent {
	return &DebugStateEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeDebugState),
		State:           state,
	}
}

// ErrorEvent reports a failure to the client. The session survives
// unless the message says otherwise.
type ErrorEvent struct {
	BaseServerEvent
	Message string `json:"message"`
}

func NewErrorEvent(message string) *ErrorEvent {
	return &ErrorEvent{
		BaseServerEvent: NewBaseServerEvent(ServerEventTypeError),
		Message:         message,
	}
}
