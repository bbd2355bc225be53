package scheduler

import "github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"

// EventKind 调度器对外通知的类型。
type EventKind string

const (
	EventState EventKind = "state"
	EventReply EventKind = "reply"
	EventSaved EventKind = "saved"
	EventError EventKind = "error"
)

// Event is delivered to the listener outside the scheduler lock.
type Event struct {
	Kind      EventKind
	SessionID string
	Reply     *interview.Reply
	Saved     *interview.SavedInterview
	Err       error
}
