package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicebridge/vad-engine/pkg/events"
	"github.com/voicebridge/vad-engine/pkg/vad"
)

func newTestManager(t *testing.T, mutate func(*ManagerConfig)) (*Manager, *vad.FakeClock) {
	t.Helper()
	clock := vad.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := DefaultManagerConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	m := NewManager(cfg, clock, nil)
	t.Cleanup(m.Close)
	return m, clock
}

func TestManager_InitGeneratesID(t *testing.T) {
	m, _ := newTestManager(t, nil)

	s, isNew, err := m.Init(context.Background(), "", nil, nil)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, m.Len())
}

func TestManager_InitResumesExisting(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	first, isNew, err := m.Init(ctx, "client-1", nil, nil)
	require.NoError(t, err)
	require.True(t, isNew)

	second, isNew, err := m.Init(ctx, "client-1", nil, nil)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Same(t, first, second)
	assert.Equal(t, 1, m.Len())
}

func TestManager_InitRejectsInvalidConfig(t *testing.T) {
	m, _ := newTestManager(t, nil)

	_, _, err := m.Init(context.Background(), "", &events.ConfigPatch{
		SampleRate: intPtr(44100),
	}, nil)
	assert.ErrorIs(t, err, vad.ErrInvalidConfig)
	assert.Equal(t, 0, m.Len())
}

func TestManager_ResumeAppliesPatch(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	s, _, err := m.Init(ctx, "client-1", nil, nil)
	require.NoError(t, err)

	_, _, err = m.Init(ctx, "client-1", &events.ConfigPatch{
		SilenceTimeoutMs: intPtr(900),
	}, nil)
	require.NoError(t, err)

	cfg, err := s.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, 900, cfg.SilenceTimeoutMs)
}

func TestManager_UnknownSession(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, m.ProcessAudio("nope", nil), ErrSessionNotFound)
	assert.ErrorIs(t, m.ForceRecalibration(ctx, "nope"), ErrSessionNotFound)
	_, err := m.UpdateConfig(ctx, "nope", events.ConfigPatch{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_Remove(t *testing.T) {
	m, _ := newTestManager(t, nil)

	s, _, err := m.Init(context.Background(), "client-1", nil, nil)
	require.NoError(t, err)

	assert.True(t, m.Remove(s.ID))
	assert.Equal(t, 0, m.Len())
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, m.Remove(s.ID))
}

func TestManager_EvictsIdleSessions(t *testing.T) {
	m, clock := newTestManager(t, func(cfg *ManagerConfig) {
		cfg.SessionTimeout = time.Minute
	})
	ctx := context.Background()

	_, _, err := m.Init(ctx, "idle", nil, nil)
	require.NoError(t, err)
	busy, _, err := m.Init(ctx, "busy", nil, nil)
	require.NoError(t, err)

	clock.Advance(45 * time.Second)
	busy.Touch()
	clock.Advance(30 * time.Second)

	m.evictIdle()
	assert.Equal(t, 1, m.Len())
	_, err = m.Get("idle")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get("busy")
	assert.NoError(t, err)
}

func TestManager_DebugStateGate(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled by default", func(t *testing.T) {
		m, _ := newTestManager(t, nil)
		_, _, err := m.Init(ctx, "client-1", nil, nil)
		require.NoError(t, err)

		_, err = m.DebugState(ctx, "client-1")
		assert.ErrorIs(t, err, ErrDebugDisabled)
	})

	t.Run("enabled", func(t *testing.T) {
		m, _ := newTestManager(t, func(cfg *ManagerConfig) { cfg.Debug = true })
		_, _, err := m.Init(ctx, "client-1", nil, nil)
		require.NoError(t, err)

		state, err := m.DebugState(ctx, "client-1")
		require.NoError(t, err)
		assert.Equal(t, "client-1", state.SessionID)
		assert.Equal(t, "calibrating", state.MachineState)
	})
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	a, _, err := m.Init(ctx, "a", nil, nil)
	require.NoError(t, err)
	b, _, err := m.Init(ctx, "b", nil, nil)
	require.NoError(t, err)

	_, err = m.UpdateConfig(ctx, "a", events.ConfigPatch{SilenceTimeoutMs: intPtr(900)})
	require.NoError(t, err)

	cfgA, err := a.Config(ctx)
	require.NoError(t, err)
	cfgB, err := b.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, 900, cfgA.SilenceTimeoutMs)
	assert.Equal(t, DefaultConfig().SilenceTimeoutMs, cfgB.SilenceTimeoutMs)
}

func TestManager_NoiseProfilesAreIsolated(t *testing.T) {
	m, clock := newTestManager(t, nil)
	ctx := context.Background()

	a, _, err := m.Init(ctx, "a", nil, nil)
	require.NoError(t, err)
	b, _, err := m.Init(ctx, "b", nil, nil)
	require.NoError(t, err)

	// Calibrate both against the same quiet room.
	for i := 0; i < 70; i++ {
		require.NoError(t, a.ProcessSync(ctx, quietFrame()))
		require.NoError(t, b.ProcessSync(ctx, quietFrame()))
		clock.Advance(30 * time.Millisecond)
	}

	before, err := a.Profile(ctx)
	require.NoError(t, err)
	require.True(t, before.CalibrationComplete)

	// Hammer B with loud audio while A hears nothing.
	for i := 0; i < 50; i++ {
		require.NoError(t, b.ProcessSync(ctx, loudFrame()))
		clock.Advance(30 * time.Millisecond)
	}

	after, err := a.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after, "frames sent to one session must not move another's noise profile")
}

func TestManager_ResumeRejectedPatchKeepsSink(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	orig := &collector{}
	s, _, err := m.Init(ctx, "client-1", nil, orig.sink())
	require.NoError(t, err)

	hijack := &collector{}
	_, _, err = m.Init(ctx, "client-1", &events.ConfigPatch{
		SampleRate: intPtr(44100),
	}, hijack.sink())
	require.ErrorIs(t, err, vad.ErrInvalidConfig)

	// The original client keeps receiving events.
	require.NoError(t, s.ProcessSync(ctx, quietFrame()))
	assert.NotEmpty(t, orig.all())
	assert.Empty(t, hijack.all())
}

func TestManager_DetachKeepsSessionAlive(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	col := &collector{}
	s, _, err := m.Init(ctx, "client-1", nil, col.sink())
	require.NoError(t, err)

	m.Detach("client-1")
	require.NoError(t, s.ProcessSync(ctx, quietFrame()))
	assert.Empty(t, col.all())

	// Still resumable.
	_, isNew, err := m.Init(ctx, "client-1", nil, col.sink())
	require.NoError(t, err)
	assert.False(t, isNew)
}
