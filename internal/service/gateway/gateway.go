// Package gateway 面试官与大模型之间的唯一出入口：对话回复、结束评分与语音合成。
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
	speechmodel "github.com/zhouzirui/mock-interviewer/backend/internal/model/speech"
)

// Synthesizer turns text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.Audio, error)
}

// Config 网关行为参数。
type Config struct {
	HistoryLimit int
	Voice        speechmodel.Voice
}

// RespondRequest 一次对话回复的输入。
type RespondRequest struct {
	Context        interview.Context `json:"context"`
	UserUtterance  string            `json:"userUtterance"`
	IsFirstMessage bool              `json:"isFirstMessage"`
}

// Acknowledgment types.
const (
	AckAnswer         = "answer"
	AckAcknowledgment = "acknowledgment"
)

// Acknowledgment 简短的“我在听”式回应。
type Acknowledgment struct {
	Response string `json:"response"`
	Type     string `json:"type"`
}

// Question is the reply shape of the legacy generate_question action.
type Question struct {
	Question   string               `json:"question"`
	Phase      interview.Phase      `json:"phase"`
	Category   string               `json:"category"`
	Difficulty interview.Difficulty `json:"difficulty"`
}

type runnable = compose.Runnable[map[string]any, *schema.Message]

// Gateway 封装三条 eino 链与语音合成器。
type Gateway struct {
	responder    runnable
	evaluator    runnable
	acknowledger runnable
	synth        Synthesizer
	cfg          Config
	log          *zap.Logger
}

// New compiles the respond, evaluate and acknowledge chains on top of chatModel.
// A nil chatModel yields ErrConfiguration.
func New(ctx context.Context, chatModel model.BaseChatModel, synth Synthesizer, cfg Config, logger *zap.Logger) (*Gateway, error) {
	if chatModel == nil {
		return nil, ErrConfiguration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}

	respondTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("screen", true),
		schema.MessagesPlaceholder("history", true),
		schema.SystemMessage("{guidance}"),
		schema.MessagesPlaceholder("turn", false),
	)
	responder, err := compileChain(ctx, chatModel, respondTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to compile respond chain: %w", err)
	}

	queryTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)
	evaluator, err := compileChain(ctx, chatModel, queryTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to compile evaluate chain: %w", err)
	}
	acknowledger, err := compileChain(ctx, chatModel, queryTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to compile acknowledge chain: %w", err)
	}

	return &Gateway{
		responder:    responder,
		evaluator:    evaluator,
		acknowledger: acknowledger,
		synth:        synth,
		cfg:          cfg,
		log:          logger,
	}, nil
}

func compileChain(ctx context.Context, chatModel model.BaseChatModel, tpl prompt.ChatTemplate) (runnable, error) {
	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(tpl)
	chain.AppendChatModel(chatModel)
	return chain.Compile(ctx)
}

// Respond produces the interviewer's next line. Remote failures and replies that
// ignore the JSON format degrade to canned text; only context cancellation is returned.
func (g *Gateway) Respond(ctx context.Context, req RespondRequest) (interview.Reply, error) {
	questionCount := len(req.Context.PreviousQuestions)
	phase := req.Context.InterviewPhase
	if !phase.IsValid() {
		phase = interview.InferPhase(questionCount)
	}

	input := map[string]any{
		"system":   interviewerSystemPrompt,
		"screen":   screenMessages(req.Context),
		"history":  historyMessages(req.Context, g.cfg.HistoryLimit),
		"guidance": guidanceMessage(req.Context, phase),
		"turn":     turnMessages(req.UserUtterance, req.IsFirstMessage),
	}

	text := ""
	replyPhase := phase
	responseType := ""

	msg, err := g.responder.Invoke(ctx, input)
	switch {
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return interview.Reply{}, ctxErr
		}
		g.recovered(&RemoteCallError{Op: "respond", Err: err})
	default:
		decoded := decodeReply(msg.Content)
		if !decoded.OK() {
			g.recovered(&MalformedReplyError{Op: "respond", Reason: decoded.Reason, Raw: msg.Content})
			break
		}
		text = decoded.Value.Text
		if decoded.Value.Phase != "" {
			replyPhase = decoded.Value.Phase
		}
		responseType = decoded.Value.ResponseType
	}

	if text == "" {
		text = cannedReply(questionCount, req.IsFirstMessage)
	}
	if req.IsFirstMessage {
		responseType = interview.ResponseGreeting
	}
	if responseType == "" {
		responseType = responseTypeFor(text, replyPhase, req.IsFirstMessage)
	}

	return interview.Reply{
		Response:          text,
		Phase:             replyPhase,
		ResponseType:      responseType,
		ShouldAskQuestion: strings.Contains(text, "?"),
	}, nil
}

// Evaluate scores the finished interview. Failures yield the neutral fallback evaluation.
func (g *Gateway) Evaluate(ctx context.Context, c interview.Context) (interview.Evaluation, error) {
	msg, err := g.evaluator.Invoke(ctx, map[string]any{
		"system": evaluationSystemPrompt,
		"query":  evaluationQuery(c),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return interview.Evaluation{}, ctxErr
		}
		g.recovered(&RemoteCallError{Op: "evaluate", Err: err})
		return interview.FallbackEvaluation(), nil
	}

	decoded := decodeEvaluation(msg.Content)
	if !decoded.OK() {
		g.recovered(&MalformedReplyError{Op: "evaluate", Reason: decoded.Reason, Raw: msg.Content})
		return interview.FallbackEvaluation(), nil
	}

	g.log.Info("interview evaluated",
		zap.Float64("overall_score", decoded.Value.OverallScore),
		zap.Int("questions", len(c.PreviousQuestions)))
	return decoded.Value, nil
}

// Acknowledge 生成简短回应，候选人确认面试官是否在听时使用。
func (g *Gateway) Acknowledge(ctx context.Context, c interview.Context, utterance string) (Acknowledgment, error) {
	isQuestion := IsQuestion(utterance)
	msg, err := g.acknowledger.Invoke(ctx, map[string]any{
		"system": acknowledgeSystemPrompt,
		"query":  acknowledgeQuery(utterance, isQuestion),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Acknowledgment{}, ctxErr
		}
		g.recovered(&RemoteCallError{Op: "acknowledge", Err: err})
		return cannedAcknowledgment(utterance), nil
	}

	decoded := decodeAcknowledgment(msg.Content)
	if !decoded.OK() {
		g.recovered(&MalformedReplyError{Op: "acknowledge", Reason: decoded.Reason, Raw: msg.Content})
		return cannedAcknowledgment(utterance), nil
	}

	ack := Acknowledgment{Response: decoded.Value.Response, Type: decoded.Value.Type}
	if ack.Type != AckAnswer && ack.Type != AckAcknowledgment {
		ack.Type = AckAcknowledgment
		if isQuestion {
			ack.Type = AckAnswer
		}
	}
	return ack, nil
}

// GenerateQuestion 旧版接口：以最近 200 字转写作为输入生成下一个问题。
func (g *Gateway) GenerateQuestion(ctx context.Context, c interview.Context) (Question, error) {
	reply, err := g.Respond(ctx, RespondRequest{
		Context:        c,
		UserUtterance:  tail(c.SpeechTranscript, legacyUtterance),
		IsFirstMessage: len(c.PreviousQuestions) == 0,
	})
	if err != nil {
		return Question{}, err
	}
	return Question{
		Question:   reply.Response,
		Phase:      reply.Phase,
		Category:   "understanding",
		Difficulty: interview.AssessDifficulty(c.PreviousAnswers, c.SpeechTranscript),
	}, nil
}

// SynthesizeSpeech 调用远端合成器，返回的音频按不透明字节处理。
func (g *Gateway) SynthesizeSpeech(ctx context.Context, text string) (*speechmodel.Audio, error) {
	if g.synth == nil {
		return nil, fmt.Errorf("%w: no speech synthesizer", ErrConfiguration)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("no text provided")
	}

	req := &speechmodel.TTSRequest{
		UtteranceID: uuid.NewString(),
		Text:        text,
		Voice:       g.cfg.Voice,
		Format:      "mp3",
	}

	start := time.Now()
	audio, err := g.synth.Synthesize(ctx, req)
	if err != nil {
		return nil, &RemoteCallError{Op: "synthesize", Err: err}
	}
	if audio.UtteranceID == "" {
		audio.UtteranceID = req.UtteranceID
	}

	g.log.Debug("speech synthesized",
		zap.String("utterance_id", audio.UtteranceID),
		zap.Int("bytes", len(audio.Data)),
		zap.Duration("took", time.Since(start)))
	return audio, nil
}

func (g *Gateway) recovered(err error) {
	g.log.Warn("llm call recovered with fallback", zap.Error(err))
}
