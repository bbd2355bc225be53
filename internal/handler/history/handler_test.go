package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/store"
)

func setupRouter(t *testing.T) (*chi.Mux, interview.SavedInterview) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 4, 5, 14, 0, 0, 0, time.UTC))
	s := store.NewMemoryStore(0, clk)
	rec, err := s.Save(context.Background(), interview.SavedInterview{
		Duration:      90,
		OverallScore:  6.8,
		QuestionCount: 1,
		Evaluation:    interview.FallbackEvaluation(),
		Questions:     []interview.QA{{Question: "What did you build?", Answer: "A CLI"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	r := chi.NewRouter()
	New(s).RegisterRoutes(r)
	return r, rec
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(method, path, nil))
	return resp
}

func TestListAndGet(t *testing.T) {
	r, rec := setupRouter(t)

	resp := do(r, http.MethodGet, "/interviews/")
	if resp.Code != http.StatusOK {
		t.Fatalf("list: %d", resp.Code)
	}
	var list []interview.SavedInterview
	json.Unmarshal(resp.Body.Bytes(), &list)
	if len(list) != 1 || list[0].ID != rec.ID {
		t.Fatalf("list = %+v", list)
	}

	if resp := do(r, http.MethodGet, "/interviews/"+rec.ID); resp.Code != http.StatusOK {
		t.Fatalf("get: %d", resp.Code)
	}
	if resp := do(r, http.MethodGet, "/interviews/interview-0"); resp.Code != http.StatusNotFound {
		t.Fatalf("missing: %d", resp.Code)
	}
}

func TestExportAttachment(t *testing.T) {
	r, rec := setupRouter(t)
	resp := do(r, http.MethodGet, "/interviews/"+rec.ID+"/export")
	if resp.Code != http.StatusOK {
		t.Fatalf("export: %d", resp.Code)
	}
	if cd := resp.Header().Get("Content-Disposition"); cd != `attachment; filename="interview-2026-04-05.json"` {
		t.Fatalf("disposition = %s", cd)
	}
	var decoded interview.SavedInterview
	if err := json.Unmarshal(resp.Body.Bytes(), &decoded); err != nil || decoded.ID != rec.ID {
		t.Fatalf("decoded = %+v, %v", decoded, err)
	}
}

func TestReport(t *testing.T) {
	r, rec := setupRouter(t)
	resp := do(r, http.MethodGet, "/interviews/"+rec.ID+"/report")
	if resp.Code != http.StatusOK || !strings.HasPrefix(resp.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("report: %d %s", resp.Code, resp.Header().Get("Content-Type"))
	}
	if !strings.Contains(resp.Body.String(), "6.8/10") {
		t.Fatal("report missing score")
	}
}

func TestDeleteAndClear(t *testing.T) {
	r, rec := setupRouter(t)
	if resp := do(r, http.MethodDelete, "/interviews/"+rec.ID); resp.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", resp.Code)
	}
	if resp := do(r, http.MethodDelete, "/interviews/"+rec.ID); resp.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", resp.Code)
	}
	if resp := do(r, http.MethodDelete, "/interviews/"); resp.Code != http.StatusNoContent {
		t.Fatalf("clear: %d", resp.Code)
	}
}
