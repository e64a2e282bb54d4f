package vad

import "fmt"

// FrameClassifier is the secondary per-frame speech classifier fused
// into the ensemble alongside the energy threshold. Implementations
// must accept raw PCM16LE mono frames of a supported (sample rate,
// frame duration) combination.
//
// The interface allows mock implementations in testing.
type FrameClassifier interface {
	// Classify reports whether the frame contains speech. frame is raw
	// PCM16LE bytes of exactly one frame at the given sample rate.
	Classify(frame []byte, sampleRate int) (bool, error)

	// SetAggressiveness switches the classifier mode (0 = least
	// aggressive filtering, 3 = most aggressive).
	SetAggressiveness(aggressiveness int) error

	// Reset clears internal state when a new audio stream starts.
	Reset() error

	// Close releases resources held by the classifier.
	Close() error
}

// Backend names a FrameClassifier implementation.
type Backend string

const (
	// BackendLocal is the pure-Go energy burst heuristic, always
	// available.
	BackendLocal Backend = "local"

	// BackendWebRTC wraps the WebRTC VAD engine; requires building with
	// the webrtcvad tag.
	BackendWebRTC Backend = "webrtc"
)

// NewFrameClassifier builds the named backend with the given
// aggressiveness.
func NewFrameClassifier(backend Backend, aggressiveness int) (FrameClassifier, error) {
	if err := ValidateAggressiveness(aggressiveness); err != nil {
		return nil, err
	}
	switch backend {
	case BackendLocal:
		return NewEnergyBurstClassifier(aggressiveness)
	case BackendWebRTC:
		return newWebRTCClassifier(aggressiveness)
	default:
		return nil, fmt.Errorf("%w: unknown classifier backend %q", ErrInvalidConfig, backend)
	}
}
