// Package history 已保存面试的查询、删除、导出与报告。
package history

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/service/store"
	"github.com/zhouzirui/mock-interviewer/backend/pkg/logger"
	"github.com/zhouzirui/mock-interviewer/backend/pkg/utils"
)

// Handler 面试记录处理器
type Handler struct {
	store store.Store
}

// New 创建处理器
func New(s store.Store) *Handler {
	return &Handler{store: s}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/interviews", func(rr chi.Router) {
		rr.Get("/", h.handleList)
		rr.Delete("/", h.handleClear)
		rr.Get("/{id}", h.handleGet)
		rr.Delete("/{id}", h.handleDelete)
		rr.Get("/{id}/export", h.handleExport)
		rr.Get("/{id}/report", h.handleReport)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, record)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := store.ExportJSON(&buf, record); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.ExportFilename()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	record, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := store.RenderReport(&buf, record); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidID):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Ctx(r.Context()).Error("interview store failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "interview store unavailable")
	}
}
