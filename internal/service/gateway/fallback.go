package gateway

import (
	"strings"

	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
)

// Canned replies used when the model is unreachable or ignores the reply format.
const (
	CannedIntro          = "Hi! Thanks for joining me today. My name is Alex, and I'm really excited to learn about your project. But first, tell me a little bit about yourself - what got you interested in software development?"
	CannedProjectAsk     = "That's great! So, tell me about the project you've been working on - what is it and what does it do?"
	CannedTellMeMore     = "That's interesting! Tell me more about how that works?"
	CannedListening      = "Yes, I'm here! I'm listening, go ahead!"
	CannedInterested     = "That's interesting! I'm listening."
	CannedGotIt          = "Got it!"
	acknowledgeLongInput = 50
)

// cannedReply 按已完成的问题数选择兜底文案。
func cannedReply(questionCount int, isFirst bool) string {
	switch {
	case isFirst || questionCount == 0:
		return CannedIntro
	case questionCount == 1:
		return CannedProjectAsk
	default:
		return CannedTellMeMore
	}
}

var listeningChecks = []string{
	"are you", "can you", "do you", "is there",
	"are you there", "are you listening", "can you hear me",
}

// IsQuestion reports whether the utterance asks something or checks that the interviewer is listening.
func IsQuestion(utterance string) bool {
	if strings.Contains(utterance, "?") {
		return true
	}
	lower := strings.ToLower(utterance)
	for _, check := range listeningChecks {
		if strings.Contains(lower, check) {
			return true
		}
	}
	return false
}

func cannedAcknowledgment(utterance string) Acknowledgment {
	if IsQuestion(utterance) {
		return Acknowledgment{Response: CannedListening, Type: AckAnswer}
	}
	if len([]rune(utterance)) > acknowledgeLongInput {
		return Acknowledgment{Response: CannedInterested, Type: AckAcknowledgment}
	}
	return Acknowledgment{Response: CannedGotIt, Type: AckAcknowledgment}
}

// responseTypeFor derives the reply type when the model does not supply one.
func responseTypeFor(text string, phase interview.Phase, isFirst bool) string {
	switch {
	case isFirst:
		return interview.ResponseGreeting
	case phase == interview.PhaseClosing:
		return interview.ResponseClosing
	case strings.Contains(text, "?"):
		return interview.ResponseQuestion
	default:
		return interview.ResponseAcknowledgment
	}
}
