package vad

import (
	"sync"
	"time"
)

// State is the session-level speaking state.
type State int

const (
	// StateCalibrating is the initial state while the noise profile is
	// being established.
	StateCalibrating State = iota
	// StateSilent means no confirmed speech episode is in progress.
	StateSilent
	// StateSpeaking means a confirmed speech episode is in progress.
	StateSpeaking
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateCalibrating:
		return "calibrating"
	case StateSilent:
		return "silent"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// MachineEvent is a notification emitted by the hysteresis machine.
type MachineEvent interface {
	machineEvent()
}

// SpeechStart is emitted when sustained speech confirms a transition to
// StateSpeaking.
type SpeechStart struct {
	Confidence float64
	Timestamp  time.Time
}

// SpeechEnd is emitted exactly once when a speech episode ends.
type SpeechEnd struct {
	Duration  time.Duration
	Timestamp time.Time
}

func (SpeechStart) machineEvent() {}
func (SpeechEnd) machineEvent()   {}

// MachineConfig controls the hysteresis thresholds.
type MachineConfig struct {
	// ConsecutiveSpeechFrames is how many speech frames in a row confirm
	// StateSpeaking. Debounces transient spikes.
	ConsecutiveSpeechFrames int

	// ConsecutiveSilenceFrames is how many silent frames in a row arm the
	// silence timeout while speaking.
	ConsecutiveSilenceFrames int

	// MinSpeakingTime is the minimum episode length before a transition
	// back to silent may begin. Prevents truncating short utterances.
	MinSpeakingTime time.Duration

	// SilenceTimeout is the grace period after the silent-frame threshold
	// before speech_end fires. Any speech frame inside it cancels the
	// pending transition.
	SilenceTimeout time.Duration
}

// DefaultMachineConfig returns the standard hysteresis settings.
func DefaultMachineConfig() MachineConfig {
	return MachineConfig{
		ConsecutiveSpeechFrames:  2,
		ConsecutiveSilenceFrames: 2,
		MinSpeakingTime:          300 * time.Millisecond,
		SilenceTimeout:           600 * time.Millisecond,
	}
}

// Machine turns noisy per-frame decisions into a stable speaking/silent
// state with debounced transitions. Frame observations arrive from the
// session's processing goroutine; the silence timer fires on the clock's
// goroutine, so all state is guarded by one mutex. A generation counter
// makes cancel-vs-fire races impossible to double-honor: a fire with a
// stale generation is ignored.
type Machine struct {
	mu  sync.Mutex
	cfg MachineConfig

	clock Clock
	emit  func(MachineEvent)

	state             State
	consecutiveSpeech int
	consecutiveSilent int
	speechStartedAt   time.Time
	startConfidence   float64

	silenceTimer Timer
	timerGen     uint64
}

// NewMachine creates a machine in StateCalibrating. emit receives
// transition events and must be safe to call from timer goroutines.
func NewMachine(cfg MachineConfig, clock Clock, emit func(MachineEvent)) *Machine {
	if emit == nil {
		emit = func(MachineEvent) {}
	}
	return &Machine{
		cfg:   cfg,
		clock: clock,
		emit:  emit,
		state: StateCalibrating,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Counters returns the current consecutive speech and silent frame
// counts, for debug snapshots.
func (m *Machine) Counters() (speech, silent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveSpeech, m.consecutiveSilent
}

// SpeechStartedAt returns the start of the current episode, zero when
// not speaking.
func (m *Machine) SpeechStartedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateSpeaking {
		return time.Time{}
	}
	return m.speechStartedAt
}

// UpdateConfig swaps the hysteresis thresholds. Counters and any armed
// timer are preserved; new thresholds apply from the next observation.
func (m *Machine) UpdateConfig(cfg MachineConfig) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

// CalibrationDone moves the machine from StateCalibrating to
// StateSilent. A no-op in any other state.
func (m *Machine) CalibrationDone() {
	m.mu.Lock()
	if m.state == StateCalibrating {
		m.state = StateSilent
	}
	m.mu.Unlock()
}

// Recalibrate returns the machine to StateCalibrating, cancelling any
// pending silence timeout. An in-progress speech episode is abandoned
// without a speech_end; the noise profile it would be measured against
// is being rebuilt.
func (m *Machine) Recalibrate() {
	m.mu.Lock()
	m.cancelTimerLocked()
	m.state = StateCalibrating
	m.consecutiveSpeech = 0
	m.consecutiveSilent = 0
	m.mu.Unlock()
}

// Observe feeds one fused frame decision into the machine.
func (m *Machine) Observe(d Decision, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateCalibrating {
		return
	}

	if d.IsSpeech {
		m.observeSpeechLocked(d, now)
	} else {
		m.observeSilenceLocked(now)
	}
}

func (m *Machine) observeSpeechLocked(d Decision, now time.Time) {
	m.consecutiveSpeech++
	m.consecutiveSilent = 0

	// A resumed speech frame atomically cancels any pending silence
	// timeout; bumping the generation invalidates a fire already racing
	// for the lock.
	m.cancelTimerLocked()

	if m.state == StateSilent && m.consecutiveSpeech >= m.cfg.ConsecutiveSpeechFrames {
		m.state = StateSpeaking
		m.speechStartedAt = now
		m.startConfidence = d.Confidence
		m.emit(SpeechStart{Confidence: d.Confidence, Timestamp: now})
	}
}

func (m *Machine) observeSilenceLocked(now time.Time) {
	m.consecutiveSilent++
	m.consecutiveSpeech = 0

	if m.state != StateSpeaking {
		return
	}
	if now.Sub(m.speechStartedAt) < m.cfg.MinSpeakingTime {
		return
	}

	// Safety net: far past the threshold means the timer path failed or
	// never armed; force the transition rather than hang in SPEAKING.
	if m.consecutiveSilent > 2*m.cfg.ConsecutiveSilenceFrames {
		m.finishSpeechLocked(now)
		return
	}

	if m.consecutiveSilent >= m.cfg.ConsecutiveSilenceFrames && m.silenceTimer == nil {
		m.armSilenceTimerLocked()
	}
}

func (m *Machine) armSilenceTimerLocked() {
	m.timerGen++
	gen := m.timerGen
	m.silenceTimer = m.clock.AfterFunc(m.cfg.SilenceTimeout, func() {
		m.onSilenceTimeout(gen)
	})
}

func (m *Machine) onSilenceTimeout(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.timerGen || m.state != StateSpeaking {
		return
	}
	m.silenceTimer = nil
	m.finishSpeechLocked(m.clock.Now())
}

func (m *Machine) finishSpeechLocked(now time.Time) {
	duration := now.Sub(m.speechStartedAt)
	m.state = StateSilent
	m.consecutiveSpeech = 0
	m.consecutiveSilent = 0
	m.cancelTimerLocked()
	m.emit(SpeechEnd{Duration: duration, Timestamp: now})
}

func (m *Machine) cancelTimerLocked() {
	if m.silenceTimer != nil {
		m.silenceTimer.Stop()
		m.silenceTimer = nil
	}
	m.timerGen++
}

// Close cancels any pending timer. No events fire after Close.
func (m *Machine) Close() {
	m.mu.Lock()
	m.cancelTimerLocked()
	m.state = StateSilent
	m.mu.Unlock()
}
