// Package interview 面试动作接口：问候、回复、评估、语音合成以及旧版动作。
package interview

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	model "github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
	speechmodel "github.com/zhouzirui/mock-interviewer/backend/internal/model/speech"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/gateway"
	"github.com/zhouzirui/mock-interviewer/backend/pkg/logger"
	"github.com/zhouzirui/mock-interviewer/backend/pkg/utils"
)

// Actions 网关能力，便于测试替换。
type Actions interface {
	Respond(ctx context.Context, req gateway.RespondRequest) (model.Reply, error)
	Evaluate(ctx context.Context, c model.Context) (model.Evaluation, error)
	Acknowledge(ctx context.Context, c model.Context, utterance string) (gateway.Acknowledgment, error)
	GenerateQuestion(ctx context.Context, c model.Context) (gateway.Question, error)
	SynthesizeSpeech(ctx context.Context, text string) (*speechmodel.Audio, error)
}

// Action names accepted by the endpoint.
const (
	ActionGreet            = "greet"
	ActionRespond          = "respond"
	ActionEvaluate         = "evaluate"
	ActionTTS              = "tts"
	ActionGenerateQuestion = "generate_question"
	ActionAcknowledge      = "acknowledge"
)

// Request is the action payload.
type Request struct {
	Action         string        `json:"action"`
	Context        model.Context `json:"context"`
	UserSpeech     string        `json:"userSpeech,omitempty"`
	IsFirstMessage bool          `json:"isFirstMessage,omitempty"`
	Text           string        `json:"text,omitempty"`
}

// Handler 面试动作处理器。actions 为 nil 表示网关未配置。
type Handler struct {
	actions Actions
}

// New 创建处理器。
func New(actions Actions) *Handler {
	return &Handler{actions: actions}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/interview", h.handleAction)
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	if h.actions == nil {
		utils.RespondError(w, http.StatusInternalServerError, gateway.ErrConfiguration.Error())
		return
	}

	var req Request
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	log := logger.Ctx(ctx).With(zap.String("action", req.Action))

	switch req.Action {
	case ActionGreet, ActionRespond:
		reply, err := h.actions.Respond(ctx, gateway.RespondRequest{
			Context:        req.Context,
			UserUtterance:  req.UserSpeech,
			IsFirstMessage: req.IsFirstMessage || req.Action == ActionGreet,
		})
		if err != nil {
			h.fail(w, log, err)
			return
		}
		utils.RespondJSON(w, http.StatusOK, reply)

	case ActionEvaluate:
		eval, err := h.actions.Evaluate(ctx, req.Context)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		utils.RespondJSON(w, http.StatusOK, eval)

	case ActionTTS:
		if strings.TrimSpace(req.Text) == "" {
			utils.RespondError(w, http.StatusBadRequest, "No text provided")
			return
		}
		audio, err := h.actions.SynthesizeSpeech(ctx, req.Text)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		w.Header().Set("Content-Type", audio.ContentType())
		w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(audio.Data); err != nil {
			log.Warn("write audio failed", zap.Error(err))
		}

	case ActionGenerateQuestion:
		q, err := h.actions.GenerateQuestion(ctx, req.Context)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		utils.RespondJSON(w, http.StatusOK, q)

	case ActionAcknowledge:
		ack, err := h.actions.Acknowledge(ctx, req.Context, req.UserSpeech)
		if err != nil {
			h.fail(w, log, err)
			return
		}
		utils.RespondJSON(w, http.StatusOK, ack)

	default:
		utils.RespondError(w, http.StatusBadRequest, "Invalid action")
	}
}

// fail 按错误类型映射状态码。
func (h *Handler) fail(w http.ResponseWriter, log *zap.Logger, err error) {
	var remote *gateway.RemoteCallError
	switch {
	case errors.Is(err, gateway.ErrConfiguration):
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &remote):
		log.Warn("remote call failed", zap.Error(err))
		utils.RespondError(w, http.StatusBadGateway, "upstream request failed")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		utils.RespondError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		log.Error("action failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Failed to process request")
	}
}
