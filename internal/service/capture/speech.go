package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
)

// Recognizer is a speech-recognition provider that reports results, errors
// and end-of-stream back through the Speech adapter's On* methods.
type Recognizer interface {
	Start(ctx context.Context) error
	Stop()
}

// SpeechEventKind 语音事件类型。
type SpeechEventKind string

const (
	SpeechInterim     SpeechEventKind = "interim"
	SpeechFinal       SpeechEventKind = "final"
	SpeechMediaDenied SpeechEventKind = "media_error"
	SpeechError       SpeechEventKind = "error"
)

// SpeechEvent is emitted by Speech.
type SpeechEvent struct {
	Kind SpeechEventKind
	Text string
	Err  error
}

// Speech keeps a recognizer listening for the whole session.
type Speech struct {
	rec          Recognizer
	clock        clock.Clock
	restartDelay time.Duration
	emit         func(SpeechEvent)
	log          *zap.Logger

	mu      sync.Mutex
	active  bool
	ctx     context.Context
	restart clock.Timer
}

// NewSpeech 创建语音适配器，restartDelay 默认 100ms。
func NewSpeech(rec Recognizer, clk clock.Clock, restartDelay time.Duration, emit func(SpeechEvent), logger *zap.Logger) *Speech {
	if restartDelay <= 0 {
		restartDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if emit == nil {
		emit = func(SpeechEvent) {}
	}
	return &Speech{rec: rec, clock: clk, restartDelay: restartDelay, emit: emit, log: logger}
}

// Start begins listening.
func (s *Speech) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = true
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.rec.Start(ctx); err != nil {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		return err
	}
	return nil
}

// Stop ends listening and cancels a pending restart.
func (s *Speech) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	if s.restart != nil {
		s.restart.Stop()
		s.restart = nil
	}
	s.mu.Unlock()

	s.rec.Stop()
}

// Active reports whether the adapter is listening.
func (s *Speech) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// OnResult forwards a recognition result. Blank text is ignored.
func (s *Speech) OnResult(text string, isFinal bool) {
	if strings.TrimSpace(text) == "" || !s.Active() {
		return
	}
	kind := SpeechInterim
	if isFinal {
		kind = SpeechFinal
	}
	s.emit(SpeechEvent{Kind: kind, Text: text})
}

// OnError classifies a provider error code. Transient codes are swallowed,
// permission errors stop the adapter and come back as *MediaAccessError.
func (s *Speech) OnError(code string) error {
	switch {
	case IsTransient(code):
		s.log.Debug("transient recognition error suppressed", zap.String("code", code))
		return nil
	case IsMediaAccess(code):
		err := &MediaAccessError{Source: "microphone", Code: code}
		s.Stop()
		s.emit(SpeechEvent{Kind: SpeechMediaDenied, Err: err})
		return err
	default:
		err := errors.New("speech recognition error: " + code)
		s.log.Warn("recognition error", zap.String("code", code))
		s.emit(SpeechEvent{Kind: SpeechError, Err: err})
		return err
	}
}

// OnEnd handles provider end-of-stream by restarting after a short delay while active.
func (s *Speech) OnEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.restart != nil {
		return
	}
	s.restart = s.clock.AfterFunc(s.restartDelay, s.restartNow)
}

func (s *Speech) restartNow() {
	s.mu.Lock()
	s.restart = nil
	if !s.active {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()

	if err := s.rec.Start(ctx); err != nil {
		s.log.Warn("failed to restart recognition", zap.Error(err))
	}
}
