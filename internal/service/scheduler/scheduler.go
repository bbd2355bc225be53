// Package scheduler 面试轮次调度：会话状态、轮次边界以及并发保护都由这里负责。
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/gateway"
)

// ErrNotActive is returned by EndSession when no session is running.
var ErrNotActive = errors.New("interview session not active")

// Gateway is the subset of the LLM gateway the scheduler drives.
type Gateway interface {
	Respond(ctx context.Context, req gateway.RespondRequest) (interview.Reply, error)
	Evaluate(ctx context.Context, c interview.Context) (interview.Evaluation, error)
}

// Speaker owns the audio output channel.
type Speaker interface {
	Speak(ctx context.Context, text string) bool
	Cancel()
	IsSpeaking() bool
}

// Saver persists finished interviews.
type Saver interface {
	Save(ctx context.Context, record interview.SavedInterview) (interview.SavedInterview, error)
}

// Publisher announces saved interviews to other systems. Optional.
type Publisher interface {
	PublishCompleted(ctx context.Context, record interview.SavedInterview) error
}

// Config 调度参数，零值字段使用默认值。
type Config struct {
	DebounceWindow     time.Duration
	DuplicateThreshold int
	MinUtteranceLength int
	GreetingDelay      time.Duration
	TickInterval       time.Duration
	TriggerTail        int
}

func (c Config) withDefaults() Config {
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 800 * time.Millisecond
	}
	if c.DuplicateThreshold <= 0 {
		c.DuplicateThreshold = 20
	}
	if c.MinUtteranceLength <= 0 {
		c.MinUtteranceLength = 5
	}
	if c.GreetingDelay <= 0 {
		c.GreetingDelay = 1500 * time.Millisecond
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.TriggerTail <= 0 {
		c.TriggerTail = 300
	}
	return c
}

// Options wires the scheduler's collaborators.
type Options struct {
	Gateway   Gateway
	Speaker   Speaker
	Saver     Saver
	Publisher Publisher
	Clock     clock.Clock
	Config    Config
	Listener  func(Event)
	Logger    *zap.Logger
}

// Scheduler owns one interview session at a time.
// The mutex is never held across gateway, speaker, store or listener calls.
type Scheduler struct {
	id        string
	gw        Gateway
	speaker   Speaker
	saver     Saver
	publisher Publisher
	clock     clock.Clock
	cfg       Config
	listener  func(Event)
	log       *zap.Logger

	mu      sync.Mutex
	session *interview.Session
	epoch   uint64
	tasks   map[string]*task
	seq     uint64
	ctx     context.Context
}

// New creates a scheduler for the session identified by id. The session is
// inactive until Start is called.
func New(id string, opts Options) (*Scheduler, error) {
	if opts.Gateway == nil {
		return nil, gateway.ErrConfiguration
	}
	if opts.Speaker == nil || opts.Saver == nil {
		return nil, errors.New("scheduler requires a speaker and a saver")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Listener == nil {
		opts.Listener = func(Event) {}
	}

	session := interview.NewSession(id, opts.Clock.Now())
	session.Active = false

	return &Scheduler{
		id:        id,
		gw:        opts.Gateway,
		speaker:   opts.Speaker,
		saver:     opts.Saver,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		cfg:       opts.Config.withDefaults(),
		listener:  opts.Listener,
		log:       opts.Logger.With(zap.String("session_id", id)),
		session:   session,
		tasks:     make(map[string]*task),
		ctx:       context.Background(),
	}, nil
}

// ID returns the session identifier.
func (s *Scheduler) ID() string {
	return s.id
}

// Start resets the session and schedules the greeting. Calling it on an active
// session restarts it: pending tasks are cancelled and in-flight replies are discarded.
// ctx is used for every turn triggered by a timer.
func (s *Scheduler) Start(ctx context.Context) {
	s.speaker.Cancel()

	s.mu.Lock()
	restarted := s.session.Active
	s.epoch++
	s.cancelAllLocked()
	s.session.Reset(s.clock.Now())
	s.ctx = ctx
	s.scheduleLocked(taskTick, s.cfg.TickInterval, s.tick)
	s.scheduleLocked(taskGreeting, s.cfg.GreetingDelay, s.greet)
	s.mu.Unlock()

	s.log.Info("interview session started", zap.Bool("restarted", restarted))
	s.emit(Event{Kind: EventState})
}

// OnScreenFrame replaces the screen context with the newest frame.
func (s *Scheduler) OnScreenFrame(frame interview.ScreenFrame) {
	if frame.Empty() {
		return
	}
	s.mu.Lock()
	if !s.session.Active {
		s.mu.Unlock()
		return
	}
	s.session.Screen = frame
	s.mu.Unlock()
}

// OnSpeechIdle is called by the speech output when an utterance finished.
func (s *Scheduler) OnSpeechIdle(string) {
	s.emit(Event{Kind: EventState})
}

// State is a point-in-time copy of the session.
type State struct {
	interview.Session
	SilenceSeconds int `json:"silenceSeconds"`
}

// Snapshot returns a copy of the session safe to serialise.
func (s *Scheduler) Snapshot() State {
	speaking := s.speaker.IsSpeaking()

	s.mu.Lock()
	defer s.mu.Unlock()
	state := State{Session: s.session.Clone()}
	state.IsSpeaking = speaking
	if s.session.Active {
		state.SilenceSeconds = int(s.clock.Now().Sub(s.session.LastSpeechAt) / time.Second)
	}
	return state
}

func (s *Scheduler) greet() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if _, err := s.DispatchTurn(ctx, "", true); err != nil {
		s.log.Warn("greeting failed", zap.Error(err))
	}
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	if !s.session.Active {
		s.mu.Unlock()
		return
	}
	s.session.ElapsedSeconds = int(s.clock.Now().Sub(s.session.StartedAt) / time.Second)
	s.scheduleLocked(taskTick, s.cfg.TickInterval, s.tick)
	s.mu.Unlock()
}

func (s *Scheduler) emit(ev Event) {
	ev.SessionID = s.id
	s.listener(ev)
}
