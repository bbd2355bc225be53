package scheduler

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/gateway"
)

type fakeGateway struct {
	mu          sync.Mutex
	requests    []gateway.RespondRequest
	evaluations int
	respondErr  error
	evaluateErr error
	phase       interview.Phase
	beforeReply func()
}

func (g *fakeGateway) Respond(_ context.Context, req gateway.RespondRequest) (interview.Reply, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	n := len(g.requests)
	err, hook := g.respondErr, g.beforeReply
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return interview.Reply{}, err
	}
	text := "Question one?"
	if req.IsFirstMessage {
		text = "Hi, I'm Alex. Tell me about yourself?"
	} else if n > 2 {
		text = "Another question?"
	}
	return interview.Reply{Response: text, Phase: g.phase, ResponseType: interview.ResponseQuestion}, nil
}

func (g *fakeGateway) Evaluate(context.Context, interview.Context) (interview.Evaluation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evaluations++
	if g.evaluateErr != nil {
		return interview.Evaluation{}, g.evaluateErr
	}
	return interview.Evaluation{
		TechnicalDepth: 8, Clarity: 8, Originality: 6,
		Understanding: 8, ProblemSolving: 7, Communication: 9,
		Feedback: "Solid.",
	}, nil
}

func (g *fakeGateway) respondCalls() []gateway.RespondRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.RespondRequest(nil), g.requests...)
}

type fakeSpeaker struct {
	mu       sync.Mutex
	speaking bool
	spoken   []string
	cancels  int
}

func (s *fakeSpeaker) Speak(_ context.Context, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.speaking {
		return false
	}
	s.spoken = append(s.spoken, text)
	return true
}

func (s *fakeSpeaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	s.speaking = false
}

func (s *fakeSpeaker) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

func (s *fakeSpeaker) setSpeaking(v bool) {
	s.mu.Lock()
	s.speaking = v
	s.mu.Unlock()
}

type fakeSaver struct {
	mu      sync.Mutex
	records []interview.SavedInterview
	err     error
}

func (s *fakeSaver) Save(_ context.Context, record interview.SavedInterview) (interview.SavedInterview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return interview.SavedInterview{}, s.err
	}
	record.ID = "interview-1"
	s.records = append(s.records, record)
	return record, nil
}

type fakePublisher struct {
	published []string
}

func (p *fakePublisher) PublishCompleted(_ context.Context, record interview.SavedInterview) error {
	p.published = append(p.published, record.ID)
	return nil
}

type harness struct {
	clock   *clock.Fake
	gw      *fakeGateway
	speaker *fakeSpeaker
	saver   *fakeSaver
	events  []Event
	sched   *Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:   clock.NewFake(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)),
		gw:      &fakeGateway{},
		speaker: &fakeSpeaker{},
		saver:   &fakeSaver{},
	}
	sched, err := New("s1", Options{
		Gateway:  h.gw,
		Speaker:  h.speaker,
		Saver:    h.saver,
		Clock:    h.clock,
		Listener: func(ev Event) { h.events = append(h.events, ev) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.sched = sched
	return h
}

// started runs Start and lets the greeting complete.
func (h *harness) started() *harness {
	h.sched.Start(context.Background())
	h.clock.Advance(1500 * time.Millisecond)
	return h
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New("x", Options{}); !errors.Is(err, gateway.ErrConfiguration) {
		t.Fatalf("err = %v", err)
	}
	if _, err := New("x", Options{Gateway: &fakeGateway{}}); err == nil {
		t.Fatal("expected error without speaker and saver")
	}
}

func TestStartSchedulesGreeting(t *testing.T) {
	h := newHarness(t)
	h.sched.Start(context.Background())

	want := []string{"s1:greeting", "s1:tick"}
	if got := h.sched.PendingTasks(); !reflect.DeepEqual(got, want) {
		t.Fatalf("tasks = %v, want %v", got, want)
	}

	h.clock.Advance(1499 * time.Millisecond)
	if n := len(h.gw.respondCalls()); n != 0 {
		t.Fatalf("greeting fired early: %d calls", n)
	}
	h.clock.Advance(time.Millisecond)

	calls := h.gw.respondCalls()
	if len(calls) != 1 || !calls[0].IsFirstMessage || calls[0].UserUtterance != "" {
		t.Fatalf("greeting request = %+v", calls)
	}
	state := h.sched.Snapshot()
	if !state.Greeted || state.CurrentQuestion == "" || len(state.History) != 0 {
		t.Fatalf("state after greeting = %+v", state)
	}
	if state.Phase != interview.PhaseGreeting {
		t.Fatalf("phase = %s, want inferred greeting", state.Phase)
	}
	if len(h.speaker.spoken) != 1 {
		t.Fatalf("spoken = %v", h.speaker.spoken)
	}
}

func TestStartIsIdempotentReset(t *testing.T) {
	h := newHarness(t).started()
	h.sched.OnSpeechFragment("I built a chat app", true)

	h.sched.Start(context.Background())
	state := h.sched.Snapshot()
	if state.Transcript != "" || state.Greeted || state.PendingAnswer != "" {
		t.Fatalf("session not reset: %+v", state)
	}
	if got := h.sched.PendingTasks(); len(got) != 2 {
		t.Fatalf("tasks after restart = %v", got)
	}

	// the debounce armed before the restart must not fire
	h.clock.Advance(time.Second)
	if n := len(h.gw.respondCalls()); n != 1 {
		t.Fatalf("calls = %d, want only the first greeting", n)
	}
	h.clock.Advance(time.Second)
	if n := len(h.gw.respondCalls()); n != 2 {
		t.Fatalf("calls = %d, want second greeting", n)
	}
}

func TestDurationTick(t *testing.T) {
	h := newHarness(t)
	h.sched.Start(context.Background())
	h.clock.Advance(3 * time.Second)
	state := h.sched.Snapshot()
	if state.ElapsedSeconds != 3 {
		t.Fatalf("elapsed = %d", state.ElapsedSeconds)
	}
	if state.SilenceSeconds != 3 {
		t.Fatalf("silence = %d", state.SilenceSeconds)
	}
}

func TestGenerationFlagClearedAfterEveryCall(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want Result
	}{
		{"success", nil, Dispatched},
		{"failure", context.DeadlineExceeded, Failed},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t).started()
			h.gw.respondErr = tc.err
			var inFlight bool
			h.gw.beforeReply = func() { inFlight = h.sched.Snapshot().GenerationInFlight }

			res, _ := h.sched.DispatchTurn(context.Background(), "my project is a compiler", false)
			if res != tc.want {
				t.Fatalf("result = %s, want %s", res, tc.want)
			}
			if !inFlight {
				t.Fatal("flag should be set during the gateway call")
			}
			if h.sched.Snapshot().GenerationInFlight {
				t.Fatal("flag still set after the call settled")
			}
		})
	}
}

func TestFailedTurnLeavesHistoryAndPhase(t *testing.T) {
	h := newHarness(t).started()
	h.sched.OnSpeechFragment("I work on distributed systems", true)
	h.gw.respondErr = errors.New("boom")
	h.clock.Advance(800 * time.Millisecond)

	state := h.sched.Snapshot()
	if len(state.History) != 0 || state.Phase != interview.PhaseGreeting {
		t.Fatalf("state mutated on failure: %+v", state)
	}
	if state.PendingAnswer != "I work on distributed systems" {
		t.Fatalf("pending answer = %q", state.PendingAnswer)
	}
	if len(h.gw.respondCalls()) != 2 {
		t.Fatal("failed turns must not be retried")
	}

	// the unanswered text is attributed to the open question on the next success
	h.gw.respondErr = nil
	h.sched.OnSpeechFragment("mostly in Go", true)
	h.clock.Advance(800 * time.Millisecond)
	state = h.sched.Snapshot()
	if len(state.History) != 1 || state.History[0].Answer != "I work on distributed systems mostly in Go" {
		t.Fatalf("history = %+v", state.History)
	}
}

func TestHistoryGrowsOnePerSuccessfulTurn(t *testing.T) {
	h := newHarness(t).started()
	answers := []string{"first answer here", "second answer here", "third answer here"}
	for i, answer := range answers {
		h.sched.OnSpeechFragment(answer, true)
		h.clock.Advance(800 * time.Millisecond)
		state := h.sched.Snapshot()
		if len(state.History) != i+1 {
			t.Fatalf("after turn %d history = %d", i+1, len(state.History))
		}
		if state.History[i].Answer != answer {
			t.Fatalf("turn %d answer = %q", i+1, state.History[i].Answer)
		}
		if state.PendingAnswer != "" {
			t.Fatalf("pending answer not cleared: %q", state.PendingAnswer)
		}
	}
	state := h.sched.Snapshot()
	if state.History[0].Question != "Hi, I'm Alex. Tell me about yourself?" {
		t.Fatalf("first question = %q", state.History[0].Question)
	}
	if state.Phase != interview.PhaseProjectOverview {
		t.Fatalf("phase = %s, want inferred from 3 turns", state.Phase)
	}
}

func TestReplyPhaseWins(t *testing.T) {
	h := newHarness(t)
	h.gw.phase = interview.PhaseDeepDive
	h.started()
	if got := h.sched.Snapshot().Phase; got != interview.PhaseDeepDive {
		t.Fatalf("phase = %s", got)
	}
}

func TestDebounceCombinesFragments(t *testing.T) {
	h := newHarness(t).started()
	h.sched.OnSpeechFragment("I built a chat app", true)
	h.clock.Advance(500 * time.Millisecond)
	h.sched.OnSpeechFragment("using websockets", true)
	h.clock.Advance(800 * time.Millisecond)

	calls := h.gw.respondCalls()
	if len(calls) != 2 {
		t.Fatalf("calls = %d, want greeting plus one turn", len(calls))
	}
	if calls[1].UserUtterance != "I built a chat app using websockets" {
		t.Fatalf("utterance = %q", calls[1].UserUtterance)
	}
}

func TestDebounceSeparatesSlowFragments(t *testing.T) {
	h := newHarness(t).started()
	h.sched.OnSpeechFragment("I built a chat app", true)
	h.clock.Advance(1000 * time.Millisecond)
	h.sched.OnSpeechFragment("using websockets", true)
	h.clock.Advance(1000 * time.Millisecond)

	calls := h.gw.respondCalls()
	if len(calls) != 3 {
		t.Fatalf("calls = %d, want greeting plus two turns", len(calls))
	}
	if calls[1].UserUtterance != "I built a chat app" || calls[2].UserUtterance != "using websockets" {
		t.Fatalf("utterances = %q, %q", calls[1].UserUtterance, calls[2].UserUtterance)
	}
}

func TestDebounceThresholds(t *testing.T) {
	h := newHarness(t)
	h.sched.Start(context.Background())
	h.sched.OnSpeechFragment("hello there friend", true)
	h.clock.Advance(800 * time.Millisecond)
	if n := len(h.gw.respondCalls()); n != 0 {
		t.Fatalf("dispatched before greeting: %d", n)
	}
	if h.sched.Snapshot().UtteranceBuffer == "" {
		t.Fatal("buffer should be kept until the greeting is done")
	}

	h.clock.Advance(700 * time.Millisecond)
	h.sched.OnSpeechFragment("ok", true)
	h.clock.Advance(800 * time.Millisecond)
	if n := len(h.gw.respondCalls()); n != 2 {
		t.Fatalf("calls = %d", n)
	}
	if got := h.gw.respondCalls()[1].UserUtterance; got != "hello there friend ok" {
		t.Fatalf("utterance = %q", got)
	}

	h.sched.OnSpeechFragment("yes", true)
	h.clock.Advance(800 * time.Millisecond)
	if n := len(h.gw.respondCalls()); n != 2 {
		t.Fatal("short buffer must not be dispatched")
	}
}

func TestInterimFragmentsAreNotCommitted(t *testing.T) {
	h := newHarness(t).started()
	h.sched.OnSpeechFragment("I built a", false)
	if state := h.sched.Snapshot(); state.UtteranceBuffer != "" || state.Transcript != "" {
		t.Fatalf("interim committed: %+v", state)
	}
}

func TestDuplicateSuppression(t *testing.T) {
	long := "This is a fairly long duplicate answer exceeding twenty chars"
	for _, tc := range []struct {
		name      string
		first     string
		second    string
		wantCalls int
	}{
		{"long duplicate", long, "  THIS IS A FAIRLY LONG DUPLICATE ANSWER EXCEEDING TWENTY CHARS ", 1},
		{"short repeat", "yes", "yes", 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t).started()
			before := len(h.gw.respondCalls())
			h.sched.DispatchTurn(context.Background(), tc.first, false)
			res, _ := h.sched.DispatchTurn(context.Background(), tc.second, false)
			if got := len(h.gw.respondCalls()) - before; got != tc.wantCalls {
				t.Fatalf("gateway calls = %d, want %d (last result %s)", got, tc.wantCalls, res)
			}
		})
	}
}

func TestNoiseAndBusyTriggersAreDropped(t *testing.T) {
	h := newHarness(t).started()
	if res, _ := h.sched.DispatchTurn(context.Background(), " k ", false); res != SkippedNoise {
		t.Fatalf("result = %s", res)
	}

	h.speaker.setSpeaking(true)
	if res, _ := h.sched.DispatchTurn(context.Background(), "a real answer", false); res != SkippedBusy {
		t.Fatalf("result while speaking = %s", res)
	}
	h.speaker.setSpeaking(false)

	var nested Result
	h.gw.beforeReply = func() {
		h.gw.beforeReply = nil
		nested, _ = h.sched.DispatchTurn(context.Background(), "another answer", false)
	}
	h.sched.DispatchTurn(context.Background(), "a real answer", false)
	if nested != SkippedBusy {
		t.Fatalf("nested dispatch = %s, want busy", nested)
	}
}

func TestBargeInCancelsSpeech(t *testing.T) {
	h := newHarness(t).started()
	h.speaker.setSpeaking(true)
	cancels := h.speaker.cancels
	h.sched.OnSpeechFragment("sorry, can I add something", true)
	if h.speaker.cancels != cancels+1 || h.speaker.IsSpeaking() {
		t.Fatal("final fragment should cancel output")
	}
	if h.sched.Snapshot().UtteranceBuffer != "sorry, can I add something" {
		t.Fatal("fragment not buffered after barge-in")
	}
}

func TestStaleReplyIgnored(t *testing.T) {
	h := newHarness(t).started()
	h.gw.beforeReply = func() {
		h.gw.beforeReply = nil
		if _, err := h.sched.EndSession(context.Background()); err != nil {
			t.Errorf("end: %v", err)
		}
	}
	res, err := h.sched.DispatchTurn(context.Background(), "late answer text", false)
	if res != Stale || err != nil {
		t.Fatalf("result = %s, %v", res, err)
	}
	state := h.sched.Snapshot()
	if state.CurrentQuestion != "Hi, I'm Alex. Tell me about yourself?" || len(state.History) != 0 {
		t.Fatalf("stale reply mutated state: %+v", state)
	}
}

func TestTriggerNextUsesTranscriptTail(t *testing.T) {
	h := newHarness(t).started()
	long := make([]byte, 400)
	for i := range long {
		long[i] = 'a'
	}
	h.sched.OnSpeechFragment(string(long), true)
	res, err := h.sched.TriggerNext(context.Background())
	if res != Dispatched || err != nil {
		t.Fatalf("result = %s, %v", res, err)
	}
	calls := h.gw.respondCalls()
	if got := len(calls[len(calls)-1].UserUtterance); got != 300 {
		t.Fatalf("utterance length = %d", got)
	}
	if len(h.sched.PendingTasks()) != 1 {
		t.Fatalf("debounce not cancelled: %v", h.sched.PendingTasks())
	}
}

func TestEndToEndSession(t *testing.T) {
	h := newHarness(t)
	pub := &fakePublisher{}
	h.sched.publisher = pub
	h.gw.evaluateErr = errors.New("evaluation service down")

	h.started()
	h.sched.OnSpeechFragment("I built a chat app", true)
	h.clock.Advance(800 * time.Millisecond)

	calls := h.gw.respondCalls()
	if len(calls) != 2 {
		t.Fatalf("respond calls = %d", len(calls))
	}
	turn := calls[1]
	if turn.UserUtterance != "I built a chat app" || len(turn.Context.PreviousAnswers) != 0 {
		t.Fatalf("turn request = %+v", turn)
	}

	record, err := h.sched.EndSession(context.Background())
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(h.saver.records) != 1 {
		t.Fatalf("saved %d records", len(h.saver.records))
	}
	if record.Evaluation.Feedback != interview.FallbackFeedback || record.OverallScore != 5 {
		t.Fatalf("evaluation = %+v", record.Evaluation)
	}
	if record.Transcript != "I built a chat app" {
		t.Fatalf("transcript = %q", record.Transcript)
	}
	if !reflect.DeepEqual(pub.published, []string{"interview-1"}) {
		t.Fatalf("published = %v", pub.published)
	}
	if h.events[len(h.events)-1].Kind != EventSaved {
		t.Fatalf("last event = %+v", h.events[len(h.events)-1])
	}

	if _, err := h.sched.EndSession(context.Background()); !errors.Is(err, ErrNotActive) {
		t.Fatalf("second end = %v", err)
	}
	if len(h.sched.PendingTasks()) != 0 {
		t.Fatal("timers left after end")
	}
}

func TestEndSessionRecomputesScoreAndReportsSaveError(t *testing.T) {
	h := newHarness(t).started()
	record, err := h.sched.EndSession(context.Background())
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	// 8*.25 + 8*.2 + 7*.2 + 8*.15 + 9*.1 + 6*.1
	if record.OverallScore != 7.7 {
		t.Fatalf("overall = %v", record.OverallScore)
	}

	h = newHarness(t).started()
	h.saver.err = errors.New("disk full")
	if _, err := h.sched.EndSession(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
}

func TestCloseAbandonsWithoutSaving(t *testing.T) {
	h := newHarness(t).started()
	h.sched.OnSpeechFragment("half finished answer", true)
	h.sched.Close()

	h.clock.Advance(5 * time.Second)
	if len(h.saver.records) != 0 || h.gw.evaluations != 0 {
		t.Fatal("close must not evaluate or save")
	}
	if len(h.sched.PendingTasks()) != 0 || h.sched.Snapshot().Active {
		t.Fatal("close should stop the session")
	}
}
