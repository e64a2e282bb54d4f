package vad

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	speechFrame  = Decision{IsSpeech: true, Confidence: 1}
	silenceFrame = Decision{IsSpeech: false, Confidence: 0}
)

type eventRecorder struct {
	mu     sync.Mutex
	events []MachineEvent
}

func (r *eventRecorder) record(ev MachineEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) all() []MachineEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MachineEvent(nil), r.events...)
}

func (r *eventRecorder) starts() []SpeechStart {
	var out []SpeechStart
	for _, ev := range r.all() {
		if s, ok := ev.(SpeechStart); ok {
			out = append(out, s)
		}
	}
	return out
}

func (r *eventRecorder) ends() []SpeechEnd {
	var out []SpeechEnd
	for _, ev := range r.all() {
		if e, ok := ev.(SpeechEnd); ok {
			out = append(out, e)
		}
	}
	return out
}

func newTestMachine(t *testing.T) (*Machine, *eventRecorder, *FakeClock) {
	t.Helper()
	clock := NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	rec := &eventRecorder{}
	m := NewMachine(DefaultMachineConfig(), clock, rec.record)
	t.Cleanup(m.Close)
	return m, rec, clock
}

// startSpeaking drives the machine into StateSpeaking.
func startSpeaking(t *testing.T, m *Machine, clock *FakeClock) {
	t.Helper()
	m.CalibrationDone()
	m.Observe(speechFrame, clock.Now())
	m.Observe(speechFrame, clock.Now())
	require.Equal(t, StateSpeaking, m.State())
}

func TestMachine_IgnoresFramesWhileCalibrating(t *testing.T) {
	m, rec, clock := newTestMachine(t)

	for i := 0; i < 10; i++ {
		m.Observe(speechFrame, clock.Now())
	}
	assert.Equal(t, StateCalibrating, m.State())
	assert.Empty(t, rec.all())
}

func TestMachine_SpeechStartNeedsConsecutiveFrames(t *testing.T) {
	m, rec, clock := newTestMachine(t)
	m.CalibrationDone()

	m.Observe(speechFrame, clock.Now())
	assert.Equal(t, StateSilent, m.State())
	assert.Empty(t, rec.starts())

	// An isolated spike followed by silence must not accumulate.
	m.Observe(silenceFrame, clock.Now())
	m.Observe(speechFrame, clock.Now())
	assert.Equal(t, StateSilent, m.State())

	m.Observe(speechFrame, clock.Now())
	assert.Equal(t, StateSpeaking, m.State())
	require.Len(t, rec.starts(), 1)
	assert.Equal(t, 1.0, rec.starts()[0].Confidence)
}

func TestMachine_SilenceTimeoutEndsSpeech(t *testing.T) {
	m, rec, clock := newTestMachine(t)
	startSpeaking(t, m, clock)

	clock.Advance(400 * time.Millisecond)
	m.Observe(silenceFrame, clock.Now())
	m.Observe(silenceFrame, clock.Now())
	assert.Equal(t, StateSpeaking, m.State(), "timer must not fire before the timeout")
	assert.Empty(t, rec.ends())

	clock.Advance(600 * time.Millisecond)
	assert.Equal(t, StateSilent, m.State())
	require.Len(t, rec.ends(), 1)
	assert.Equal(t, time.Second, rec.ends()[0].Duration)

	// Nothing else may fire later.
	clock.Advance(5 * time.Second)
	assert.Len(t, rec.ends(), 1)
}

func TestMachine_SpeechResumeCancelsPendingTimeout(t *testing.T) {
	m, rec, clock := newTestMachine(t)
	startSpeaking(t, m, clock)

	clock.Advance(400 * time.Millisecond)
	m.Observe(silenceFrame, clock.Now())
	m.Observe(silenceFrame, clock.Now())

	// Speech inside the grace period keeps the episode alive.
	clock.Advance(100 * time.Millisecond)
	m.Observe(speechFrame, clock.Now())

	clock.Advance(5 * time.Second)
	assert.Equal(t, StateSpeaking, m.State())
	assert.Empty(t, rec.ends())
	assert.Len(t, rec.starts(), 1, "resuming must not emit a second speech_start")
}

func TestMachine_MinSpeakingTimeBlocksEarlyEnd(t *testing.T) {
	m, rec, clock := newTestMachine(t)
	startSpeaking(t, m, clock)

	// A burst of silence right after the start must not end the episode.
	clock.Advance(100 * time.Millisecond)
	for i := 0; i < 10; i++ {
		m.Observe(silenceFrame, clock.Now())
	}
	assert.Equal(t, StateSpeaking, m.State())
	assert.Empty(t, rec.ends())
}

func TestMachine_SafetyNetEndsWithoutTimer(t *testing.T) {
	m, rec, clock := newTestMachine(t)
	startSpeaking(t, m, clock)

	// Sustained silence well past the consecutive threshold forces the
	// transition immediately instead of waiting on the timer.
	clock.Advance(400 * time.Millisecond)
	for i := 0; i < 5; i++ {
		m.Observe(silenceFrame, clock.Now())
	}
	assert.Equal(t, StateSilent, m.State())
	require.Len(t, rec.ends(), 1)
	assert.Equal(t, 400*time.Millisecond, rec.ends()[0].Duration)

	// The armed timer was cancelled with the transition.
	clock.Advance(5 * time.Second)
	assert.Len(t, rec.ends(), 1)
}

func TestMachine_RecalibrateAbandonsEpisode(t *testing.T) {
	m, rec, clock := newTestMachine(t)
	startSpeaking(t, m, clock)

	m.Recalibrate()
	assert.Equal(t, StateCalibrating, m.State())
	assert.Empty(t, rec.ends(), "recalibration must not emit speech_end")

	clock.Advance(5 * time.Second)
	assert.Empty(t, rec.ends())

	m.CalibrationDone()
	assert.Equal(t, StateSilent, m.State())
}

func TestMachine_UpdateConfigAppliesNewThresholds(t *testing.T) {
	m, rec, clock := newTestMachine(t)
	m.CalibrationDone()

	cfg := DefaultMachineConfig()
	cfg.ConsecutiveSpeechFrames = 4
	m.UpdateConfig(cfg)

	m.Observe(speechFrame, clock.Now())
	m.Observe(speechFrame, clock.Now())
	m.Observe(speechFrame, clock.Now())
	assert.Equal(t, StateSilent, m.State())

	m.Observe(speechFrame, clock.Now())
	assert.Equal(t, StateSpeaking, m.State())
	assert.Len(t, rec.starts(), 1)
}

func TestMachine_CloseSuppressesPendingTimer(t *testing.T) {
	m, rec, clock := newTestMachine(t)
	startSpeaking(t, m, clock)

	clock.Advance(400 * time.Millisecond)
	m.Observe(silenceFrame, clock.Now())
	m.Observe(silenceFrame, clock.Now())

	m.Close()
	clock.Advance(5 * time.Second)
	assert.Empty(t, rec.ends())
}
