//go:build !webrtcvad

package vad

import "fmt"

// newWebRTCClassifier reports that the WebRTC backend was not compiled
// in. Rebuild with '-tags webrtcvad' to enable it; the local backend
// remains available either way.
func newWebRTCClassifier(aggressiveness int) (FrameClassifier, error) {
	return nil, fmt.Errorf("webrtc vad support is not enabled; rebuild with '-tags webrtcvad'")
}
