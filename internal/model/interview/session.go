package interview

import "time"

// Difficulty 按候选人回答推断的难度档位。
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Turn 一轮完整的问答。写入历史后不再修改。
type Turn struct {
	Question   string     `json:"question"`
	Answer     string     `json:"answer"`
	Phase      Phase      `json:"phase"`
	Difficulty Difficulty `json:"difficulty"`
}

// ScreenFrame is the most recent capture of the candidate's shared screen.
// Exactly one of Image (a data URL) or Text (OCR output) is normally set.
type ScreenFrame struct {
	Image      string    `json:"image,omitempty"`
	Text       string    `json:"text,omitempty"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Empty reports whether the frame carries no content.
func (f ScreenFrame) Empty() bool {
	return f.Image == "" && f.Text == ""
}

// Session 单场面试的运行时状态，由调度器独占。
type Session struct {
	ID                 string      `json:"id"`
	Phase              Phase       `json:"phase"`
	History            []Turn      `json:"turnHistory"`
	UtteranceBuffer    string      `json:"currentUtteranceBuffer"`
	PendingAnswer      string      `json:"pendingAnswer"`
	CurrentQuestion    string      `json:"currentQuestion,omitempty"`
	LastUtterance      string      `json:"lastUtterance,omitempty"`
	Transcript         string      `json:"transcript"`
	Screen             ScreenFrame `json:"screenContext"`
	StartedAt          time.Time   `json:"startedAt"`
	ElapsedSeconds     int         `json:"elapsedSeconds"`
	LastSpeechAt       time.Time   `json:"lastSpeechAt"`
	GenerationInFlight bool        `json:"generationInFlight"`
	IsSpeaking         bool        `json:"isSpeaking"`
	Greeted            bool        `json:"greeted"`
	Active             bool        `json:"active"`
}

// NewSession 创建处于初始状态的会话。
func NewSession(id string, now time.Time) *Session {
	s := &Session{ID: id}
	s.Reset(now)
	return s
}

// Reset clears every field except the identifier and marks the session active.
func (s *Session) Reset(now time.Time) {
	*s = Session{
		ID:           s.ID,
		Phase:        PhaseGreeting,
		StartedAt:    now,
		LastSpeechAt: now,
		Active:       true,
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *Session) Clone() Session {
	out := *s
	out.History = append([]Turn(nil), s.History...)
	return out
}

// Context builds the gateway request context from the current state.
func (s *Session) Context() Context {
	questions := make([]string, 0, len(s.History))
	answers := make([]string, 0, len(s.History))
	for _, turn := range s.History {
		questions = append(questions, turn.Question)
		answers = append(answers, turn.Answer)
	}
	return Context{
		ScreenImage:       s.Screen.Image,
		ScreenContent:     s.Screen.Text,
		SpeechTranscript:  s.Transcript,
		PreviousQuestions: questions,
		PreviousAnswers:   answers,
		InterviewPhase:    s.Phase,
		InterviewDuration: s.ElapsedSeconds,
	}
}

// Context 发往网关的面试上下文，字段名与前端保持一致。
type Context struct {
	ScreenContent     string   `json:"screenContent,omitempty"`
	ScreenImage       string   `json:"screenImage,omitempty"`
	SpeechTranscript  string   `json:"speechTranscript"`
	PreviousQuestions []string `json:"previousQuestions"`
	PreviousAnswers   []string `json:"previousAnswers"`
	InterviewPhase    Phase    `json:"interviewPhase,omitempty"`
	InterviewDuration int      `json:"interviewDuration,omitempty"`
}

// Reply 网关对一轮对话的结构化回复。
type Reply struct {
	Response          string `json:"response"`
	Phase             Phase  `json:"phase"`
	ResponseType      string `json:"responseType"`
	ShouldAskQuestion bool   `json:"shouldAskQuestion"`
}

// Response types produced by the gateway.
const (
	ResponseGreeting       = "greeting"
	ResponseFollowUp       = "follow-up"
	ResponseQuestion       = "question"
	ResponseAcknowledgment = "acknowledgment"
	ResponseClosing        = "closing"
)
