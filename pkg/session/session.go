package session

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/voicebridge/vad-engine/pkg/audio"
	"github.com/voicebridge/vad-engine/pkg/events"
	"github.com/voicebridge/vad-engine/pkg/metrics"
	"github.com/voicebridge/vad-engine/pkg/vad"
)

// EventSink delivers server events for one session to its transport.
// A nil sink drops events; sessions keep running detached.
type EventSink func(ev events.ServerEvent)

const (
	// frameQueueSize bounds the per-session audio queue. Overflow drops
	// the oldest chunk so live audio stays current.
	frameQueueSize = 32

	// recentVerdictWindow bounds the frame history backing the debug
	// speech ratio.
	recentVerdictWindow = 100

	// calibrationGrace is slack added to the calibration window before
	// the timer force-closes it, so calibration finishes even when the
	// client stops sending frames.
	calibrationGrace = 250 * time.Millisecond
)

// Session runs the full detection pipeline for one client: calibrator,
// ensemble classifier and hysteresis machine, all driven by a single
// goroutine so frames are processed in strict arrival order.
type Session struct {
	ID        string
	CreatedAt time.Time

	clock vad.Clock
	mets  *metrics.Metrics

	mu           sync.Mutex
	sink         EventSink
	lastActivity time.Time

	// Pipeline state below is owned by the run goroutine (or, before
	// Start, by the constructor).
	cfg        events.Config
	frameBytes int
	ensemble   vad.EnsembleConfig
	calibrator *vad.Calibrator
	classifier vad.FrameClassifier
	machine    *vad.Machine
	calTimer   vad.Timer

	totalFrames  uint64
	speechFrames uint64
	// recent holds 1/0 verdicts for the last frames so the debug
	// speech ratio reflects current behavior, not session history.
	recent *audio.LevelRing

	frames  chan []byte
	control chan func()
	ctx     context.Context
	cancel  context.CancelFunc
	closed  chan struct{}
}

func newSession(id string, cfg events.Config, backend vad.Backend, clock vad.Clock, mets *metrics.Metrics, sink EventSink) (*Session, error) {
	classifier, err := vad.NewFrameClassifier(backend, cfg.Aggressiveness)
	if err != nil {
		if backend == vad.BackendLocal {
			return nil, err
		}
		log.Printf("[session %s] %q classifier unavailable (%v), falling back to local", id, backend, err)
		classifier, err = vad.NewFrameClassifier(vad.BackendLocal, cfg.Aggressiveness)
		if err != nil {
			return nil, err
		}
	}

	now := clock.Now()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:           id,
		CreatedAt:    now,
		clock:        clock,
		mets:         mets,
		sink:         sink,
		lastActivity: now,
		cfg:          cfg,
		frameBytes:   audio.FrameBytes(cfg.SampleRate, cfg.FrameDurationMs),
		ensemble:     ensembleConfig(cfg),
		calibrator:   vad.NewCalibrator(calibratorConfig(cfg), now),
		classifier:   classifier,
		recent:       audio.NewLevelRing(recentVerdictWindow),
		frames:       make(chan []byte, frameQueueSize),
		control:      make(chan func(), 8),
		ctx:          ctx,
		cancel:       cancel,
		closed:       make(chan struct{}),
	}
	s.machine = vad.NewMachine(machineConfig(cfg), clock, s.onMachineEvent)
	s.armCalibrationTimer()
	return s, nil
}

func ensembleConfig(cfg events.Config) vad.EnsembleConfig {
	return vad.EnsembleConfig{
		UseEnergy:       cfg.UseEnergyMethod,
		UseSecondary:    cfg.UseSecondaryMethod,
		EnergyWeight:    cfg.EnergyWeight,
		SecondaryWeight: cfg.SecondaryWeight,
	}
}

// start launches the processing goroutine. Called once by the manager.
func (s *Session) start() {
	go s.run()
}

func (s *Session) run() {
	defer close(s.closed)
	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.control:
			fn()
		case chunk := <-s.frames:
			s.safeProcessChunk(chunk)
		}
	}
}

// EnqueueAudio queues a raw PCM16LE chunk for asynchronous processing.
// On a full queue the oldest chunk is evicted first.
func (s *Session) EnqueueAudio(payload []byte) {
	s.Touch()
	select {
	case s.frames <- payload:
		return
	default:
	}
	select {
	case <-s.frames:
		s.mets.FrameDropped()
		log.Printf("[session %s] frame queue full, dropping oldest chunk", s.ID)
	default:
	}
	select {
	case s.frames <- payload:
	default:
		s.mets.FrameDropped()
	}
}

// ProcessSync runs a chunk through the pipeline on the session
// goroutine and returns once every frame in it has been processed.
// Used by the batch HTTP endpoint.
func (s *Session) ProcessSync(ctx context.Context, payload []byte) error {
	s.Touch()
	return s.do(ctx, func() {
		s.safeProcessChunk(payload)
	})
}

// UpdateConfig merges a partial config into the session configuration.
// An invalid merge result is rejected and the previous configuration
// stays in effect.
func (s *Session) UpdateConfig(ctx context.Context, patch events.ConfigPatch) (events.Config, error) {
	s.Touch()
	var (
		merged   events.Config
		applyErr error
	)
	err := s.do(ctx, func() {
		merged = Merge(s.cfg, patch)
		if applyErr = Validate(merged); applyErr != nil {
			return
		}
		applyErr = s.applyConfig(merged)
	})
	if err != nil {
		return events.Config{}, err
	}
	if applyErr != nil {
		return events.Config{}, applyErr
	}
	return merged, nil
}

// applyConfig installs a validated configuration. Runs on the session
// goroutine.
func (s *Session) applyConfig(cfg events.Config) error {
	if cfg.Aggressiveness != s.cfg.Aggressiveness {
		if err := s.classifier.SetAggressiveness(cfg.Aggressiveness); err != nil {
			return fmt.Errorf("apply aggressiveness: %w", err)
		}
	}
	s.cfg = cfg
	s.frameBytes = audio.FrameBytes(cfg.SampleRate, cfg.FrameDurationMs)
	s.ensemble = ensembleConfig(cfg)
	s.calibrator.SetConfig(calibratorConfig(cfg))
	s.machine.UpdateConfig(machineConfig(cfg))
	return nil
}

// ForceRecalibration discards the noise profile and reopens the
// calibration window. An in-progress speech episode is abandoned
// without a speech_end.
func (s *Session) ForceRecalibration(ctx context.Context) error {
	s.Touch()
	return s.do(ctx, func() {
		s.calibrator.ForceRecalibration(s.clock.Now())
		s.machine.Recalibrate()
		s.armCalibrationTimer()
		s.emit(events.NewCalibrationStartedEvent(s.ID))
	})
}

// DebugState snapshots the session internals.
func (s *Session) DebugState(ctx context.Context) (events.DebugState, error) {
	var state events.DebugState
	err := s.do(ctx, func() {
		speech, silent := s.machine.Counters()
		ratio := 0.0
		if verdicts := s.recent.Values(); len(verdicts) > 0 {
			ratio = audio.Mean(verdicts)
		}
		state = events.DebugState{
			SessionID:               s.ID,
			CreatedAt:               s.CreatedAt.UnixMilli(),
			LastActivity:            s.LastActivity().UnixMilli(),
			MachineState:            s.machine.State().String(),
			IsSpeaking:              s.machine.State() == vad.StateSpeaking,
			TotalFrames:             s.totalFrames,
			SpeechFrames:            s.speechFrames,
			SpeechRatio:             ratio,
			ConsecutiveSpeechFrames: speech,
			ConsecutiveSilentFrames: silent,
			Threshold:               s.calibrator.Threshold(),
			NoiseProfile:            s.calibrator.Profile(),
			Config:                  s.cfg,
		}
	})
	return state, err
}

// Config returns the session configuration as seen by the pipeline.
func (s *Session) Config(ctx context.Context) (events.Config, error) {
	var cfg events.Config
	err := s.do(ctx, func() { cfg = s.cfg })
	return cfg, err
}

// Profile returns the current noise profile snapshot.
func (s *Session) Profile(ctx context.Context) (vad.NoiseProfile, error) {
	var p vad.NoiseProfile
	err := s.do(ctx, func() { p = s.calibrator.Profile() })
	return p, err
}

// do runs fn on the session goroutine and waits for it to finish.
func (s *Session) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	job := func() {
		defer close(done)
		fn()
	}
	select {
	case s.control <- job:
	case <-s.ctx.Done():
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueueControl posts fn to the session goroutine without waiting.
// Dropped when the control queue is full or the session is closing.
func (s *Session) enqueueControl(fn func()) {
	select {
	case s.control <- fn:
	case <-s.ctx.Done():
	default:
	}
}

// SetSink swaps the event sink. Passing nil detaches the session:
// processing continues but events are dropped until a client resumes.
func (s *Session) SetSink(sink EventSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// Touch records client activity for idle eviction.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = s.clock.Now()
	s.mu.Unlock()
}

// LastActivity returns the time of the most recent client interaction.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) emit(ev events.ServerEvent) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink(ev)
	}
}

// onMachineEvent translates state machine transitions into wire events.
// Called with the machine lock held, possibly from a timer goroutine.
func (s *Session) onMachineEvent(ev vad.MachineEvent) {
	switch e := ev.(type) {
	case vad.SpeechStart:
		s.emit(events.NewSpeechStartEvent(s.ID, e.Confidence, e.Timestamp.UnixMilli()))
	case vad.SpeechEnd:
		s.mets.SpeechSegment(e.Duration)
		s.emit(events.NewSpeechEndEvent(s.ID, e.Duration.Milliseconds(), e.Timestamp.UnixMilli()))
	}
}

func (s *Session) armCalibrationTimer() {
	if s.calTimer != nil {
		s.calTimer.Stop()
	}
	window := time.Duration(s.cfg.RMS.CalibrationDurationMs)*time.Millisecond + calibrationGrace
	s.calTimer = s.clock.AfterFunc(window, func() {
		s.enqueueControl(func() {
			if s.calibrator.ForceComplete(s.clock.Now()) {
				s.finishCalibration()
			}
		})
	})
}

func (s *Session) finishCalibration() {
	if s.calTimer != nil {
		s.calTimer.Stop()
		s.calTimer = nil
	}
	s.machine.CalibrationDone()
	s.mets.CalibrationCompleted()
	s.emit(events.NewCalibrationCompleteEvent(s.ID, s.calibrator.Profile()))
}

// safeProcessChunk isolates pipeline panics: a malformed chunk must
// never take down the process or the other sessions.
func (s *Session) safeProcessChunk(chunk []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.mets.ProcessingError()
			log.Printf("[session %s] panic processing chunk: %v\n%s", s.ID, r, debug.Stack())
			s.emit(events.NewErrorEvent(fmt.Sprintf("internal error processing audio: %v", r)))
		}
	}()
	s.processChunk(chunk)
}

// processChunk splits a chunk into frames and runs each through the
// pipeline. A trailing partial frame is discarded.
func (s *Session) processChunk(chunk []byte) {
	for _, frame := range audio.SplitFrames(chunk, s.frameBytes) {
		s.processFrame(frame)
	}
}

func (s *Session) processFrame(frame []byte) {
	samples, err := audio.DecodePCM16(frame)
	if err != nil {
		s.mets.ProcessingError()
		s.emit(events.NewErrorEvent("audio payload is not valid PCM16"))
		return
	}
	now := s.clock.Now()
	level := audio.RMS(samples)
	s.totalFrames++

	if s.calibrator.Calibrating() {
		s.mets.FrameProcessed("calibrating")
		if s.calibrator.Update(level, now) {
			s.finishCalibration()
		}
		s.emit(events.NewVADResultEvent(s.ID, false, level, s.calibrator.Threshold(), now.UnixMilli()))
		return
	}

	threshold := s.calibrator.Threshold()
	energy := level > threshold
	secondary := false
	if s.cfg.UseSecondaryMethod {
		v, cerr := s.classifier.Classify(frame, s.cfg.SampleRate)
		if cerr != nil {
			s.mets.ProcessingError()
			log.Printf("[session %s] secondary classifier: %v", s.ID, cerr)
		} else {
			secondary = v
		}
	}

	d := vad.ClassifyEnsemble(energy, secondary, s.ensemble)
	s.calibrator.Observe(level, d.IsSpeech, now)
	if d.IsSpeech {
		s.speechFrames++
		s.recent.Push(1)
		s.mets.FrameProcessed("speech")
	} else {
		s.recent.Push(0)
		s.mets.FrameProcessed("silence")
	}
	s.machine.Observe(d, now)
	s.emit(events.NewVADResultEvent(s.ID, d.IsSpeech, level, threshold, now.UnixMilli()))
}

// Close tears the session down: stops the goroutine, cancels timers and
// releases the classifier.
func (s *Session) Close() {
	s.cancel()
	<-s.closed
	if s.calTimer != nil {
		s.calTimer.Stop()
	}
	s.machine.Close()
	if err := s.classifier.Close(); err != nil {
		log.Printf("[session %s] closing classifier: %v", s.ID, err)
	}
}
