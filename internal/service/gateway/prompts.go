package gateway

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
)

const (
	transcriptTail   = 500
	screenTextTail   = 500
	screenTextMinLen = 50
	answerTail       = 300
	evalScreenTail   = 1000
	evalTranscript   = 2000
	legacyUtterance  = 200
)

const interviewerSystemPrompt = `You are Alex, a casual, friendly, and highly reactive technical interviewer. Think of yourself as a peer developer having a coffee chat about code.

PERSONA RULES:
1. Be reactive: use fillers like "Um," "Ah," "Oh cool," "Wait," to sound human. React to their specific words immediately.
2. Visual awareness: you can see their screen. Say things like "I see you're using React there," or "That function looks complex."
3. Casual tone: "Hey," "Gotcha," "Makes sense." Avoid formal implementation details unless asked.
4. No repeated intros: introduce yourself once at the very start. Never say your name again.

INTERVIEW PHASES:
1. Greeting: introduce yourself once and ask them to introduce themselves.
2. Personal intro: listen, say "Nice to meet you," then ask what project you are looking at today.
3. Project overview: ask them to share their screen and walk you through how they built it.
4. Deep dive: pick a specific file or component you can see and ask what is happening there.
5. Problem solving: "what if" scenarios, edge cases, scaling.
6. Closing: wrap up warmly, ask about learnings and future improvements.

Keep every reply short enough to be spoken aloud (1-3 sentences).

Respond with JSON only:
{"text": "what you say out loud", "phase": "one of greeting, personal-intro, project-overview, deep-dive, problem-solving, closing", "responseType": "one of greeting, follow-up, question, acknowledgment, closing"}`

const startOfInterviewPrompt = "[START OF INTERVIEW - Greet the candidate warmly and ask them to introduce themselves. Keep it natural and friendly. Say your name is Alex. This is the ONLY time you should introduce yourself.]"

const silentCandidatePrompt = "[The candidate has been silent for a while. Gently prompt them to continue or offer to move to another topic.]"

const screenIntro = "Here is what I am currently sharing on my screen:"

const evaluationSystemPrompt = `You are a supportive mentor evaluating a candidate's project presentation. Be encouraging but honest. Lead with positives.

Scoring (1-10 each):
- technicalDepth: Understanding of core concepts
- clarity: How clearly they explained things
- originality: Creative solutions and unique approaches
- understanding: How well they know their own project
- problemSolving: Critical thinking demonstrated
- communication: Articulation and engagement

Overall: Weighted average (Technical 25%, Understanding 20%, Problem-Solving 20%, Clarity 15%, Communication 10%, Originality 10%)

Respond with JSON only.`

const acknowledgeSystemPrompt = `You are a friendly, engaged interviewer having a natural conversation. When the candidate speaks, acknowledge them to show you're listening and engaged.

Keep responses short (1-2 sentences max) and natural, like a real person:
1. If they ask "are you there?" or "are you listening?", respond warmly: "Yes, I'm here! I'm listening, go ahead!"
2. If they ask a question, answer it briefly.
3. If they're explaining something, acknowledge with "Oh that's interesting!", "Got it!", "I see!" or similar.
4. If they pause, encourage them: "Take your time!", "I'm listening!"`

// tail returns the last n runes of s.
func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func minutes(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	return seconds / 60
}

// screenMessages 屏幕截图优先，其次是足够长的 OCR 文本。
func screenMessages(ctx interview.Context) []*schema.Message {
	if ctx.ScreenImage != "" {
		return []*schema.Message{{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{Type: schema.ChatMessagePartTypeText, Text: screenIntro},
				{
					Type: schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{
						URL:    ctx.ScreenImage,
						Detail: schema.ImageURLDetailLow,
					},
				},
			},
		}}
	}
	if len([]rune(ctx.ScreenContent)) > screenTextMinLen {
		return []*schema.Message{
			schema.SystemMessage(fmt.Sprintf("[Screen Context (OCR Text): %s]", tail(ctx.ScreenContent, screenTextTail))),
		}
	}
	return nil
}

func historyMessages(ctx interview.Context, limit int) []*schema.Message {
	start := 0
	if limit > 0 && len(ctx.PreviousQuestions) > limit {
		start = len(ctx.PreviousQuestions) - limit
	}

	history := make([]*schema.Message, 0, 2*(len(ctx.PreviousQuestions)-start))
	for i := start; i < len(ctx.PreviousQuestions); i++ {
		history = append(history, schema.AssistantMessage(ctx.PreviousQuestions[i], nil))
		if i < len(ctx.PreviousAnswers) && strings.TrimSpace(ctx.PreviousAnswers[i]) != "" {
			history = append(history, schema.UserMessage(tail(ctx.PreviousAnswers[i], answerTail)))
		}
	}
	return history
}

func guidanceMessage(ctx interview.Context, phase interview.Phase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Current Phase: %s - %s. Question count: %d. Duration: %d min]",
		phase, phase.Guidance(), len(ctx.PreviousQuestions), minutes(ctx.InterviewDuration))

	recent := strings.TrimSpace(tail(ctx.SpeechTranscript, transcriptTail))
	if recent == "" {
		b.WriteString("\n[Recent transcript: they haven't started speaking yet.]")
	} else {
		fmt.Fprintf(&b, "\n[Recent transcript: %s]", recent)
	}
	return b.String()
}

func turnMessages(utterance string, isFirst bool) []*schema.Message {
	switch {
	case isFirst:
		return []*schema.Message{schema.UserMessage(startOfInterviewPrompt)}
	case strings.TrimSpace(utterance) != "":
		return []*schema.Message{schema.UserMessage(utterance)}
	default:
		return []*schema.Message{schema.UserMessage(silentCandidatePrompt)}
	}
}

func evaluationQuery(ctx interview.Context) string {
	var b strings.Builder
	b.WriteString("Evaluate this interview:\n\n")

	switch {
	case strings.TrimSpace(ctx.ScreenContent) != "":
		fmt.Fprintf(&b, "Screen Content: %s\n\n", tail(ctx.ScreenContent, evalScreenTail))
	case ctx.ScreenImage != "":
		b.WriteString("Screen Content: a screenshot was shared during the interview\n\n")
	default:
		b.WriteString("Screen Content: None captured\n\n")
	}

	if transcript := strings.TrimSpace(ctx.SpeechTranscript); transcript != "" {
		fmt.Fprintf(&b, "Candidate Transcript:\n%s\n\n", tail(transcript, evalTranscript))
	}

	b.WriteString("Conversation:\n")
	pairs := make([]string, 0, len(ctx.PreviousQuestions))
	for i, q := range ctx.PreviousQuestions {
		answer := "(no response)"
		if i < len(ctx.PreviousAnswers) && strings.TrimSpace(ctx.PreviousAnswers[i]) != "" {
			answer = ctx.PreviousAnswers[i]
		}
		pairs = append(pairs, fmt.Sprintf("Interviewer: %s\nCandidate: %s", q, answer))
	}
	b.WriteString(strings.Join(pairs, "\n\n"))

	fmt.Fprintf(&b, "\n\nDuration: %d minutes\nQuestions Asked: %d\n\n", minutes(ctx.InterviewDuration), len(ctx.PreviousQuestions))
	b.WriteString("Provide evaluation as JSON with: technicalDepth, clarity, originality, understanding, problemSolving, communication, overallScore, feedback, strengths[], areasForImprovement[], detailedBreakdown{technicalConcepts, architectureUnderstanding, codeQuality, presentationSkills}")
	return b.String()
}

func acknowledgeQuery(utterance string, isQuestion bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The candidate just said: %q\n\n", utterance)
	if isQuestion {
		b.WriteString("They asked a question or are checking if you're listening. Respond appropriately.\n\n")
	} else {
		b.WriteString("They're explaining or talking. Give a brief, warm acknowledgment to show you're listening.\n\n")
	}
	kind := "acknowledgment"
	if isQuestion {
		kind = "answer"
	}
	fmt.Fprintf(&b, "Respond with JSON: {\"response\": \"your brief acknowledgment or answer\", \"type\": %q}", kind)
	return b.String()
}
