// Package events defines the typed client/server message vocabulary of
// the VAD streaming protocol. Every message carries a "type"
// discriminator; payload structs replace dynamic dispatch by event name
// so handlers can switch exhaustively.
package events

import (
	"encoding/json"
	"fmt"
)

// ClientEventType represents the type of client message.
type ClientEventType string

const (
	ClientEventTypeInit               ClientEventType = "init"
	ClientEventTypeProcessAudio       ClientEventType = "process_audio"
	ClientEventTypeUpdateConfig       ClientEventType = "update_config"
	ClientEventTypeForceRecalibration ClientEventType = "force_recalibration"
	ClientEventTypeGetDebugState      ClientEventType = "get_debug_state"
)

// ClientEvent is the interface for all client messages.
type ClientEvent interface {
	ClientEventType() ClientEventType
	GetEventID() string
}

// BaseClientEvent contains common fields for all client messages.
type BaseClientEvent struct {
	EventID string          `json:"event_id,omitempty"`
	Type    ClientEventType `json:"type"`
}

func (e BaseClientEvent) ClientEventType() ClientEventType {
	return e.Type
}

func (e BaseClientEvent) GetEventID() string {
	return e.EventID
}

// InitEvent creates a new session or resumes a still-live one by id.
type InitEvent struct {
	BaseClientEvent
	SessionID string       `json:"session_id,omitempty"`
	Config    *ConfigPatch `json:"config,omitempty"`
}

// ProcessAudioEvent carries one chunk of base64-encoded PCM16LE mono
// audio for a session. A chunk may span multiple frames.
type ProcessAudioEvent struct {
	BaseClientEvent
	SessionID string `json:"session_id"`
	Audio     string `json:"audio"`
}

// UpdateConfigEvent deep-merges a partial configuration into the
// session's current one.
type UpdateConfigEvent struct {
	BaseClientEvent
	SessionID string      `json:"session_id"`
	Config    ConfigPatch `json:"config"`
}

// ForceRecalibrationEvent resets the session's noise profile and
// restarts calibration.
type ForceRecalibrationEvent struct {
	BaseClientEvent
	SessionID string `json:"session_id"`
}

// GetDebugStateEvent requests a read-only session snapshot.
type GetDebugStateEvent struct {
	BaseClientEvent
	SessionID string `json:"session_id"`
}

// ParseClientEvent parses a JSON message into a ClientEvent.
func ParseClientEvent(data []byte) (ClientEvent, error) {
	var base BaseClientEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to parse event type: %w", err)
	}

	var event ClientEvent
	var err error

	switch base.Type {
	case ClientEventTypeInit:
		var e InitEvent
		err = json.Unmarshal(data, &e)
		event = &e

	case ClientEventTypeProcessAudio:
		var e ProcessAudioEvent
		err = json.Unmarshal(data, &e)
		event = &e

	case ClientEventTypeUpdateConfig:
		var e UpdateConfigEvent
		err = json.Unmarshal(data, &e)
		event = &e

	case ClientEventTypeForceRecalibration:
		var e ForceRecalibrationEvent
		err = json.Unmarshal(data, &e)
		event = &e

	case ClientEventTypeGetDebugState:
		var e GetDebugStateEvent
		err = json.Unmarshal(data, &e)
		event = &e

	default:
		return nil, fmt.Errorf("unknown client event type: %s", base.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse %s event: %w", base.Type, err)
	}

	return event, nil
}
