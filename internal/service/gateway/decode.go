package gateway

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
)

// Decoded 解析结果：成功时 Value 有效，失败时 Reason 给出原因。
type Decoded[T any] struct {
	Value  T
	Reason string
}

// OK reports whether decoding succeeded.
func (d Decoded[T]) OK() bool { return d.Reason == "" }

func decodeOK[T any](v T) Decoded[T] { return Decoded[T]{Value: v} }

func decodeFail[T any](reason string) Decoded[T] { return Decoded[T]{Reason: reason} }

// extractJSONObject 截取第一个 "{" 与最后一个 "}" 之间的内容，兼容 ```json 包裹。
func extractJSONObject(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return trimmed[start : end+1], true
}

// firstString returns the first non-empty string among the alias results.
func firstString(results ...gjson.Result) string {
	for _, r := range results {
		if s := strings.TrimSpace(r.String()); r.Exists() && s != "" {
			return s
		}
	}
	return ""
}

func firstResult(results ...gjson.Result) gjson.Result {
	for _, r := range results {
		if r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

type replyPayload struct {
	Text         string
	Phase        interview.Phase
	ResponseType string
}

// decodeReply parses the respond reply. Plain text containing no "{" at all is
// accepted verbatim as the reply text.
func decodeReply(content string) Decoded[replyPayload] {
	content = strings.TrimSpace(content)
	if content == "" {
		return decodeFail[replyPayload]("empty reply")
	}

	if !strings.Contains(content, "{") {
		return decodeOK(replyPayload{Text: content})
	}

	raw, ok := extractJSONObject(content)
	if !ok || !gjson.Valid(raw) {
		return decodeFail[replyPayload]("invalid json object")
	}

	fields := gjson.GetMany(raw,
		"text", "response", "question",
		"phase", "interviewPhase", "interview_phase",
		"responseType", "response_type", "type",
	)

	text := firstString(fields[0], fields[1], fields[2])
	if text == "" {
		return decodeFail[replyPayload]("missing text field")
	}

	payload := replyPayload{Text: text}
	if phase, ok := interview.ParsePhase(firstString(fields[3], fields[4], fields[5])); ok {
		payload.Phase = phase
	}
	payload.ResponseType = normalizeResponseType(firstString(fields[6], fields[7], fields[8]))
	return decodeOK(payload)
}

func normalizeResponseType(raw string) string {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "_", "-")
	switch normalized {
	case interview.ResponseGreeting, interview.ResponseFollowUp, interview.ResponseQuestion,
		interview.ResponseAcknowledgment, interview.ResponseClosing:
		return normalized
	case "followup":
		return interview.ResponseFollowUp
	case "acknowledgement":
		return interview.ResponseAcknowledgment
	default:
		return ""
	}
}

var scoreAliases = [][]string{
	{"technicalDepth", "technical_depth"},
	{"clarity"},
	{"originality"},
	{"understanding"},
	{"problemSolving", "problem_solving"},
	{"communication"},
}

// decodeEvaluation parses the evaluate reply. Missing sub-scores default to 5,
// a missing overallScore is left at zero for Normalize to recompute.
func decodeEvaluation(content string) Decoded[interview.Evaluation] {
	raw, ok := extractJSONObject(content)
	if !ok {
		return decodeFail[interview.Evaluation]("missing json object")
	}
	if !gjson.Valid(raw) {
		return decodeFail[interview.Evaluation]("invalid json object")
	}

	doc := gjson.Parse(raw)
	var eval interview.Evaluation
	targets := []*float64{
		&eval.TechnicalDepth, &eval.Clarity, &eval.Originality,
		&eval.Understanding, &eval.ProblemSolving, &eval.Communication,
	}
	for i, aliases := range scoreAliases {
		*targets[i] = scoreOf(doc, aliases...)
	}

	if overall := firstResult(doc.Get("overallScore"), doc.Get("overall_score")); overall.Exists() {
		eval.OverallScore = overall.Float()
	}

	eval.Feedback = firstString(doc.Get("feedback"), doc.Get("summary"))
	if eval.Feedback == "" {
		eval.Feedback = "Interview completed successfully."
	}
	eval.Strengths = stringList(firstResult(doc.Get("strengths")))
	eval.AreasForImprovement = stringList(firstResult(
		doc.Get("areasForImprovement"), doc.Get("areas_for_improvement"), doc.Get("improvements"),
	))

	breakdown := firstResult(doc.Get("detailedBreakdown"), doc.Get("detailed_breakdown"))
	if breakdown.IsObject() {
		eval.DetailedBreakdown = interview.Breakdown{
			TechnicalConcepts:         firstString(breakdown.Get("technicalConcepts"), breakdown.Get("technical_concepts")),
			ArchitectureUnderstanding: firstString(breakdown.Get("architectureUnderstanding"), breakdown.Get("architecture_understanding")),
			CodeQuality:               firstString(breakdown.Get("codeQuality"), breakdown.Get("code_quality")),
			PresentationSkills:        firstString(breakdown.Get("presentationSkills"), breakdown.Get("presentation_skills")),
		}
	}

	eval.Normalize()
	return decodeOK(eval)
}

func scoreOf(doc gjson.Result, aliases ...string) float64 {
	for _, alias := range aliases {
		r := doc.Get(alias)
		switch r.Type {
		case gjson.Number:
			return r.Float()
		case gjson.String:
			if s := strings.TrimSpace(r.Str); s != "" {
				if v := gjson.Parse(s); v.Type == gjson.Number {
					return v.Float()
				}
			}
		}
	}
	return interview.DefaultSubScore
}

func stringList(r gjson.Result) []string {
	out := []string{}
	if !r.Exists() {
		return out
	}
	if !r.IsArray() {
		if s := strings.TrimSpace(r.String()); s != "" {
			out = append(out, s)
		}
		return out
	}
	for _, item := range r.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type ackPayload struct {
	Response string
	Type     string
}

func decodeAcknowledgment(content string) Decoded[ackPayload] {
	raw, ok := extractJSONObject(content)
	if !ok {
		return decodeFail[ackPayload]("missing json object")
	}
	if !gjson.Valid(raw) {
		return decodeFail[ackPayload]("invalid json object")
	}
	fields := gjson.GetMany(raw, "response", "text", "type")
	payload := ackPayload{
		Response: firstString(fields[0], fields[1]),
		Type:     firstString(fields[2]),
	}
	if payload.Response == "" {
		return decodeFail[ackPayload]("missing response field")
	}
	return decodeOK(payload)
}
