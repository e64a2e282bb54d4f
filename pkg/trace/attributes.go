package trace

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys used throughout the application
const (
	// Session attributes
	AttrSessionID   = "session.id"
	AttrSessionNew  = "session.is_new"
	AttrMessageType = "message.type"

	// Audio attributes
	AttrAudioSampleRate = "audio.sample_rate"
	AttrAudioFrameMs    = "audio.frame_duration_ms"
	AttrAudioDataSize   = "audio.data_size"

	// Detection attributes
	AttrVerdict     = "vad.verdict"
	AttrConfidence  = "vad.confidence"
	AttrCalibrating = "vad.calibrating"

	// Connection attributes
	AttrConnectionID   = "connection.id"
	AttrConnectionType = "connection.type"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Helper functions to create common attributes

// SessionAttrs creates attributes for session information
func SessionAttrs(sessionID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrSessionID, sessionID),
	}
}

// AudioAttrs creates attributes for an audio payload
func AudioAttrs(sampleRate, frameMs, dataSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrAudioSampleRate, sampleRate),
		attribute.Int(AttrAudioFrameMs, frameMs),
		attribute.Int(AttrAudioDataSize, dataSize),
	}
}

// ConnectionAttrs creates attributes for connection information
func ConnectionAttrs(connID, connType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrConnectionID, connID),
		attribute.String(AttrConnectionType, connType),
	}
}

// ErrorAttrs creates attributes for errors
func ErrorAttrs(errType, errMsg string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errType),
		attribute.String(AttrErrorMessage, errMsg),
	}
}
