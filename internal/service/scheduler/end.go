package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
)

// EndSession stops the session, evaluates it and persists exactly one record.
// A failed evaluation is replaced by the neutral fallback. Text still sitting
// in the pending answer is not added to the history.
func (s *Scheduler) EndSession(ctx context.Context) (interview.SavedInterview, error) {
	s.mu.Lock()
	sess := s.session
	if !sess.Active {
		s.mu.Unlock()
		return interview.SavedInterview{}, ErrNotActive
	}
	s.epoch++
	s.cancelAllLocked()
	sess.Active = false
	sess.GenerationInFlight = false
	sess.ElapsedSeconds = int(s.clock.Now().Sub(sess.StartedAt) / time.Second)
	snapshot := sess.Clone()
	s.mu.Unlock()

	s.speaker.Cancel()

	eval, err := s.gw.Evaluate(ctx, snapshot.Context())
	if err != nil {
		s.log.Warn("evaluation failed, using fallback", zap.Error(err))
		eval = interview.FallbackEvaluation()
	}
	eval.Normalize()

	// 即使调用方已断开也要落盘。
	persistCtx := context.WithoutCancel(ctx)
	record, err := s.saver.Save(persistCtx, interview.NewSavedInterview(snapshot, eval))
	if err != nil {
		s.emit(Event{Kind: EventError, Err: err})
		return interview.SavedInterview{}, fmt.Errorf("save interview: %w", err)
	}
	s.log.Info("interview saved",
		zap.String("interview_id", record.ID),
		zap.Int("questions", record.QuestionCount),
		zap.Float64("overall_score", record.OverallScore))

	if s.publisher != nil {
		if err := s.publisher.PublishCompleted(persistCtx, record); err != nil {
			s.log.Warn("publish completion event failed", zap.Error(err))
		}
	}

	s.emit(Event{Kind: EventSaved, Saved: &record})
	return record, nil
}

// Close abandons the session without evaluating or saving it, used when the
// client disconnects mid-interview.
func (s *Scheduler) Close() {
	s.mu.Lock()
	wasActive := s.session.Active
	s.epoch++
	s.cancelAllLocked()
	s.session.Active = false
	s.session.GenerationInFlight = false
	s.mu.Unlock()

	s.speaker.Cancel()
	if wasActive {
		s.log.Info("interview session abandoned")
	}
}
