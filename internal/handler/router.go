package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/handler/history"
	"github.com/zhouzirui/mock-interviewer/backend/internal/handler/interview"
	"github.com/zhouzirui/mock-interviewer/backend/internal/handler/session"
	middlewarePkg "github.com/zhouzirui/mock-interviewer/backend/internal/middleware"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/gateway"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/store"
	"github.com/zhouzirui/mock-interviewer/backend/pkg/utils"
)

// Dependencies 路由所需的服务，Gateway 为空时面试相关接口返回配置错误。
type Dependencies struct {
	Gateway *gateway.Gateway
	Store   store.Store
	Session session.Dependencies
	Logger  *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	var actions interview.Actions
	if deps.Gateway != nil {
		actions = deps.Gateway
		deps.Session.Gateway = deps.Gateway
	}
	if deps.Session.Saver == nil && deps.Store != nil {
		deps.Session.Saver = deps.Store
	}
	if deps.Session.Logger == nil {
		deps.Session.Logger = deps.Logger
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status": "ok",
				"llm":    deps.Gateway != nil,
				"speech": deps.Session.Synthesizer != nil,
				"time":   time.Now().UTC().Format(time.RFC3339),
			})
		})

		// 面试动作
		api.Group(func(g chi.Router) {
			g.Use(middleware.Timeout(90 * time.Second))
			interview.New(actions).RegisterRoutes(g)
		})

		if deps.Store != nil {
			history.New(deps.Store).RegisterRoutes(api)
		}

		session.New(deps.Session).RegisterRoutes(api)
	})

	return r
}
