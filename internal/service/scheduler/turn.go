package scheduler

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/gateway"
)

// Result describes what DispatchTurn did with a trigger.
type Result string

const (
	Dispatched       Result = "dispatched"
	SkippedInactive  Result = "inactive"
	SkippedBusy      Result = "busy"
	SkippedDuplicate Result = "duplicate"
	SkippedNoise     Result = "noise"
	Failed           Result = "failed"
	Stale            Result = "stale"
)

// minSignalLength 少于该长度的非问候语视为噪声。
const minSignalLength = 2

// OnSpeechFragment handles one recognition result. Only final fragments are
// committed. A final fragment while the interviewer is talking cancels playback first.
func (s *Scheduler) OnSpeechFragment(text string, isFinal bool) {
	text = strings.TrimSpace(text)
	if !isFinal || text == "" {
		return
	}
	if !s.isActive() {
		return
	}
	if s.speaker.IsSpeaking() {
		s.log.Debug("barge-in, cancelling speech output")
		s.speaker.Cancel()
	}

	s.mu.Lock()
	if !s.session.Active {
		s.mu.Unlock()
		return
	}
	sess := s.session
	sess.UtteranceBuffer = appendText(sess.UtteranceBuffer, text)
	sess.PendingAnswer = appendText(sess.PendingAnswer, text)
	sess.Transcript = appendText(sess.Transcript, text)
	sess.LastSpeechAt = s.clock.Now()
	s.scheduleLocked(taskDebounce, s.cfg.DebounceWindow, s.flushUtterance)
	s.mu.Unlock()
}

// flushUtterance runs once the debounce window passed without new speech.
func (s *Scheduler) flushUtterance() {
	s.mu.Lock()
	buffered := strings.TrimSpace(s.session.UtteranceBuffer)
	if utf8.RuneCountInString(buffered) <= s.cfg.MinUtteranceLength || !s.session.Greeted {
		s.mu.Unlock()
		return
	}
	s.session.UtteranceBuffer = ""
	ctx := s.ctx
	s.mu.Unlock()

	if _, err := s.DispatchTurn(ctx, buffered, false); err != nil {
		s.log.Warn("turn failed", zap.Error(err))
	}
}

// TriggerNext dispatches the tail of the transcript as a turn, used when the
// candidate asks the interviewer to move on.
func (s *Scheduler) TriggerNext(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if !s.session.Active {
		s.mu.Unlock()
		return SkippedInactive, nil
	}
	s.cancelLocked(taskDebounce)
	s.session.UtteranceBuffer = ""
	utterance := strings.TrimSpace(tail(s.session.Transcript, s.cfg.TriggerTail))
	s.mu.Unlock()

	if utterance == "" {
		return SkippedNoise, nil
	}
	return s.DispatchTurn(ctx, utterance, false)
}

// DispatchTurn sends one turn to the gateway. Triggers that arrive while a
// reply is pending or the interviewer is speaking are dropped, never queued.
// The returned error is non-nil only for Failed.
func (s *Scheduler) DispatchTurn(ctx context.Context, utterance string, isGreeting bool) (Result, error) {
	if s.speaker.IsSpeaking() {
		return SkippedBusy, nil
	}

	s.mu.Lock()
	sess := s.session
	if !sess.Active {
		s.mu.Unlock()
		return SkippedInactive, nil
	}
	if sess.GenerationInFlight {
		s.mu.Unlock()
		s.log.Debug("turn dropped, generation in flight")
		return SkippedBusy, nil
	}

	utterance = strings.TrimSpace(utterance)
	if !isGreeting {
		if utf8.RuneCountInString(utterance) < minSignalLength {
			s.mu.Unlock()
			return SkippedNoise, nil
		}
		if s.isDuplicateLocked(utterance) {
			s.mu.Unlock()
			s.log.Debug("duplicate utterance skipped", zap.String("utterance", utterance))
			return SkippedDuplicate, nil
		}
		sess.LastUtterance = utterance
	}

	sess.GenerationInFlight = true
	epoch := s.epoch
	req := gateway.RespondRequest{
		Context:        sess.Context(),
		UserUtterance:  utterance,
		IsFirstMessage: isGreeting,
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventState})

	reply, err := s.gw.Respond(ctx, req)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.log.Debug("discarding reply for previous session")
		return Stale, nil
	}
	sess.GenerationInFlight = false
	if err != nil {
		s.mu.Unlock()
		s.emit(Event{Kind: EventError, Err: err})
		return Failed, err
	}
	s.recordReplyLocked(reply, isGreeting)
	text := sess.CurrentQuestion
	s.mu.Unlock()

	s.emit(Event{Kind: EventReply, Reply: &reply})
	if text != "" && !s.speaker.Speak(ctx, text) {
		s.log.Warn("speech output busy, reply not spoken")
	}
	return Dispatched, nil
}

// recordReplyLocked closes the previous question with the answer collected
// since it was asked, then opens the new one.
func (s *Scheduler) recordReplyLocked(reply interview.Reply, isGreeting bool) {
	sess := s.session
	answer := strings.TrimSpace(sess.PendingAnswer)
	if sess.CurrentQuestion != "" && answer != "" {
		answers := make([]string, 0, len(sess.History)+1)
		for _, turn := range sess.History {
			answers = append(answers, turn.Answer)
		}
		answers = append(answers, answer)
		sess.History = append(sess.History, interview.Turn{
			Question:   sess.CurrentQuestion,
			Answer:     answer,
			Phase:      sess.Phase,
			Difficulty: interview.AssessDifficulty(answers, sess.Transcript),
		})
		sess.PendingAnswer = ""
	}

	sess.CurrentQuestion = strings.TrimSpace(reply.Response)
	if reply.Phase.IsValid() {
		sess.Phase = reply.Phase
	} else {
		sess.Phase = interview.InferPhase(len(sess.History))
	}
	if isGreeting {
		sess.Greeted = true
	}
}

func (s *Scheduler) isDuplicateLocked(utterance string) bool {
	normalized := strings.ToLower(utterance)
	previous := strings.ToLower(strings.TrimSpace(s.session.LastUtterance))
	return normalized == previous && utf8.RuneCountInString(normalized) > s.cfg.DuplicateThreshold
}

func (s *Scheduler) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Active
}

func appendText(buf, text string) string {
	if buf == "" {
		return text
	}
	return buf + " " + text
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
