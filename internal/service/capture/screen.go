// Package capture 把浏览器上报的屏幕帧与语音识别结果整理成离散事件。
package capture

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
)

// ScreenEventKind 屏幕事件类型。
type ScreenEventKind string

const (
	ScreenActivated   ScreenEventKind = "activated"
	ScreenFrame       ScreenEventKind = "frame"
	ScreenDeactivated ScreenEventKind = "deactivated"
)

// ScreenEvent is emitted by Screen.
type ScreenEvent struct {
	Kind  ScreenEventKind
	Frame interview.ScreenFrame
}

// Screen samples the most recently pushed frame once per interval.
// Frames overwrite each other; only the newest one is ever emitted.
type Screen struct {
	clock    clock.Clock
	interval time.Duration
	emit     func(ScreenEvent)
	log      *zap.Logger

	mu      sync.Mutex
	active  bool
	latest  interview.ScreenFrame
	pending bool
	sampled bool
	timer   clock.Timer
}

// NewScreen 创建屏幕适配器，interval 默认 5s。
func NewScreen(clk clock.Clock, interval time.Duration, emit func(ScreenEvent), logger *zap.Logger) *Screen {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if emit == nil {
		emit = func(ScreenEvent) {}
	}
	return &Screen{clock: clk, interval: interval, emit: emit, log: logger}
}

// Activate starts sampling. Calling it while active is a no-op.
func (s *Screen) Activate() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.pending = false
	s.sampled = false
	s.latest = interview.ScreenFrame{}
	s.timer = s.clock.AfterFunc(s.interval, s.sample)
	s.mu.Unlock()

	s.log.Info("screen sharing activated")
	s.emit(ScreenEvent{Kind: ScreenActivated})
}

// Push stores a frame from the browser. The first frame after activation is
// emitted immediately; later ones wait for the next sample. Returns false when inactive.
func (s *Screen) Push(frame interview.ScreenFrame) bool {
	if frame.Text != "" {
		frame.Text = CleanOCRText(frame.Text)
	}
	if frame.Empty() {
		return false
	}
	if frame.CapturedAt.IsZero() {
		frame.CapturedAt = s.clock.Now()
	}

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false
	}
	s.latest = frame
	emitNow := !s.sampled
	if emitNow {
		s.sampled = true
		s.pending = false
	} else {
		s.pending = true
	}
	s.mu.Unlock()

	if emitNow {
		s.emit(ScreenEvent{Kind: ScreenFrame, Frame: frame})
	}
	return true
}

// Revoke stops sampling after the user ended sharing.
func (s *Screen) Revoke() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.log.Info("screen sharing revoked")
	s.emit(ScreenEvent{Kind: ScreenDeactivated})
}

// Active reports whether sharing is on.
func (s *Screen) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Screen) sample() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	frame, due := s.latest, s.pending
	s.pending = false
	s.timer = s.clock.AfterFunc(s.interval, s.sample)
	s.mu.Unlock()

	if due {
		s.emit(ScreenEvent{Kind: ScreenFrame, Frame: frame})
	}
}
