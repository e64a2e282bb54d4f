// Package audio provides PCM helpers for the VAD pipeline.
//
// Incoming audio is raw PCM16LE mono. The helpers here convert byte
// payloads into int16 samples, compute normalized RMS levels, and derive
// frame geometry from a sample rate and frame duration.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrOddPayload indicates a PCM16 payload with an odd byte count.
var ErrOddPayload = errors.New("audio: PCM16 payload has odd length")

// FrameBytes returns the size in bytes of one frame of 16-bit mono PCM
// at the given sample rate and frame duration.
func FrameBytes(sampleRate, frameDurationMs int) int {
	return sampleRate * frameDurationMs / 1000 * 2
}

// FrameSamples returns the number of samples in one frame.
func FrameSamples(sampleRate, frameDurationMs int) int {
	return sampleRate * frameDurationMs / 1000
}

// DecodePCM16 converts little-endian 16-bit PCM bytes into samples.
func DecodePCM16(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, ErrOddPayload
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return samples, nil
}

// RMS computes the root-mean-square level of the samples, normalized to
// the 0..1 range (full-scale int16 maps to 1.0).
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum/float64(len(samples))) / 32768.0
}

// SplitFrames slices a PCM payload into consecutive frames of frameBytes
// each. A trailing partial frame is discarded; stale partial audio is
// worthless for real-time detection.
func SplitFrames(data []byte, frameBytes int) [][]byte {
	if frameBytes <= 0 {
		return nil
	}
	n := len(data) / frameBytes
	frames := make([][]byte, 0, n)
	for i := 0; i+frameBytes <= len(data); i += frameBytes {
		frames = append(frames, data[i:i+frameBytes])
	}
	return frames
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation of values. Fewer than two
// values yield 0.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
