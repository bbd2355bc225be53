package interview

import (
	"fmt"
	"strings"
	"time"
)

// QA 导出记录中的一问一答。
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SavedInterview 面试结束时生成的不可变快照。
type SavedInterview struct {
	ID            string     `json:"id"`
	Date          time.Time  `json:"date"`
	Duration      int        `json:"duration"`
	OverallScore  float64    `json:"overallScore"`
	QuestionCount int        `json:"questionCount"`
	Transcript    string     `json:"transcript"`
	Evaluation    Evaluation `json:"evaluation"`
	Questions     []QA       `json:"questions"`
}

// NewSavedInterview snapshots a finished session together with its evaluation.
// ID and Date are assigned by the store.
func NewSavedInterview(s Session, eval Evaluation) SavedInterview {
	questions := make([]QA, 0, len(s.History))
	for _, turn := range s.History {
		questions = append(questions, QA{Question: turn.Question, Answer: turn.Answer})
	}
	return SavedInterview{
		Duration:      s.ElapsedSeconds,
		OverallScore:  eval.OverallScore,
		QuestionCount: len(s.History),
		Transcript:    strings.TrimSpace(s.Transcript),
		Evaluation:    eval,
		Questions:     questions,
	}
}

// IDFor 根据时间生成记录 ID。
func IDFor(t time.Time) string {
	return fmt.Sprintf("interview-%d", t.UnixMilli())
}

// ExportFilename is the download name used for JSON exports.
func (s SavedInterview) ExportFilename() string {
	return fmt.Sprintf("interview-%s.json", s.Date.Format("2006-01-02"))
}

// DurationLabel formats the duration as "Xm Ys".
func (s SavedInterview) DurationLabel() string {
	return fmt.Sprintf("%dm %ds", s.Duration/60, s.Duration%60)
}
