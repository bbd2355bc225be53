package interview

import "strings"

// Phase 面试所处的阶段。
type Phase string

const (
	PhaseGreeting        Phase = "greeting"
	PhasePersonalIntro   Phase = "personal-intro"
	PhaseProjectOverview Phase = "project-overview"
	PhaseDeepDive        Phase = "deep-dive"
	PhaseProblemSolving  Phase = "problem-solving"
	PhaseClosing         Phase = "closing"
)

// Phases 按面试顺序排列的全部阶段。
var Phases = []Phase{
	PhaseGreeting,
	PhasePersonalIntro,
	PhaseProjectOverview,
	PhaseDeepDive,
	PhaseProblemSolving,
	PhaseClosing,
}

// IsValid 判断是否为已知阶段。
func (p Phase) IsValid() bool {
	switch p {
	case PhaseGreeting, PhasePersonalIntro, PhaseProjectOverview,
		PhaseDeepDive, PhaseProblemSolving, PhaseClosing:
		return true
	default:
		return false
	}
}

func (p Phase) String() string {
	return string(p)
}

// Label returns the human readable name shown in the session header.
func (p Phase) Label() string {
	switch p {
	case PhaseGreeting:
		return "Greeting"
	case PhasePersonalIntro:
		return "Introduction"
	case PhaseProjectOverview:
		return "Project Overview"
	case PhaseDeepDive:
		return "Deep Dive"
	case PhaseProblemSolving:
		return "Problem Solving"
	default:
		return "Closing"
	}
}

// Guidance 返回该阶段给面试官的提示语。
func (p Phase) Guidance() string {
	switch p {
	case PhaseGreeting:
		return "Warmly greet them and ask them to introduce themselves."
	case PhasePersonalIntro:
		return "They are introducing themselves. Listen, acknowledge, and when ready, ask about their project."
	case PhaseProjectOverview:
		return "Learn about their project - what it does, why they built it, what problems it solves."
	case PhaseDeepDive:
		return "Explore technical details - architecture, challenges, interesting solutions."
	case PhaseProblemSolving:
		return `Ask "what if" scenarios, edge cases, scaling questions.`
	case PhaseClosing:
		return "Wrap up warmly, ask about learnings and future improvements."
	default:
		return ""
	}
}

// ParsePhase 解析外部输入的阶段值，大小写与下划线不敏感。
func ParsePhase(raw string) (Phase, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	p := Phase(normalized)
	if !p.IsValid() {
		return "", false
	}
	return p, true
}

// InferPhase maps the number of completed turns to a phase.
func InferPhase(turnCount int) Phase {
	switch {
	case turnCount <= 0:
		return PhaseGreeting
	case turnCount == 1:
		return PhasePersonalIntro
	case turnCount <= 3:
		return PhaseProjectOverview
	case turnCount <= 6:
		return PhaseDeepDive
	case turnCount <= 9:
		return PhaseProblemSolving
	default:
		return PhaseClosing
	}
}
