package vad

import "sync"

// MockClassifier is a mock implementation of FrameClassifier for
// testing. Behavior is customized through the ClassifyFunc field.
type MockClassifier struct {
	// ClassifyFunc is called when Classify is invoked.
	// If nil, Classify returns false (no speech).
	ClassifyFunc func(frame []byte, sampleRate int) (bool, error)

	// ClassifyCalls counts invocations of Classify.
	ClassifyCalls int

	// ResetCalled tracks if Reset was called.
	ResetCalled bool

	// CloseCalled tracks if Close was called.
	CloseCalled bool

	// Aggressiveness records the last SetAggressiveness value.
	Aggressiveness int

	mu sync.Mutex
}

// NewMockClassifier creates a MockClassifier with default behavior.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

// NewMockClassifierWithVerdict creates a MockClassifier returning a
// fixed verdict.
func NewMockClassifierWithVerdict(verdict bool) *MockClassifier {
	return &MockClassifier{
		ClassifyFunc: func([]byte, int) (bool, error) {
			return verdict, nil
		},
	}
}

// NewMockClassifierWithSequence creates a MockClassifier returning
// verdicts in sequence, cycling once exhausted.
func NewMockClassifierWithSequence(verdicts []bool) *MockClassifier {
	idx := 0
	return &MockClassifier{
		ClassifyFunc: func([]byte, int) (bool, error) {
			if len(verdicts) == 0 {
				return false, nil
			}
			v := verdicts[idx]
			idx = (idx + 1) % len(verdicts)
			return v, nil
		},
	}
}

// Classify implements FrameClassifier.
func (m *MockClassifier) Classify(frame []byte, sampleRate int) (bool, error) {
	m.mu.Lock()
	m.ClassifyCalls++
	m.mu.Unlock()

	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(frame, sampleRate)
	}
	return false, nil
}

// SetAggressiveness implements FrameClassifier.
func (m *MockClassifier) SetAggressiveness(aggressiveness int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Aggressiveness = aggressiveness
	return nil
}

// Reset implements FrameClassifier.
func (m *MockClassifier) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetCalled = true
	return nil
}

// Close implements FrameClassifier.
func (m *MockClassifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	return nil
}

var _ FrameClassifier = (*MockClassifier)(nil)
