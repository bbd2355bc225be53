package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	model "github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
	speechmodel "github.com/zhouzirui/mock-interviewer/backend/internal/model/speech"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/gateway"
)

type stubActions struct {
	lastRespond gateway.RespondRequest
	ttsErr      error
}

func (s *stubActions) Respond(_ context.Context, req gateway.RespondRequest) (model.Reply, error) {
	s.lastRespond = req
	return model.Reply{Response: "Tell me about your project?", Phase: model.PhasePersonalIntro, ResponseType: model.ResponseQuestion, ShouldAskQuestion: true}, nil
}

func (s *stubActions) Evaluate(context.Context, model.Context) (model.Evaluation, error) {
	eval := model.FallbackEvaluation()
	return eval, nil
}

func (s *stubActions) Acknowledge(_ context.Context, _ model.Context, utterance string) (gateway.Acknowledgment, error) {
	return gateway.Acknowledgment{Response: "Got it.", Type: gateway.AckAcknowledgment}, nil
}

func (s *stubActions) GenerateQuestion(context.Context, model.Context) (gateway.Question, error) {
	return gateway.Question{Question: "Why Go?", Phase: model.PhaseDeepDive, Category: "understanding", Difficulty: model.DifficultyMedium}, nil
}

func (s *stubActions) SynthesizeSpeech(_ context.Context, text string) (*speechmodel.Audio, error) {
	if s.ttsErr != nil {
		return nil, s.ttsErr
	}
	return &speechmodel.Audio{Data: []byte("ID3audio"), Format: "mp3"}, nil
}

func setupRouter(actions Actions) *chi.Mux {
	r := chi.NewRouter()
	New(actions).RegisterRoutes(r)
	return r
}

func post(t *testing.T, r http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/interview", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestGreetSetsFirstMessage(t *testing.T) {
	stub := &stubActions{}
	resp := post(t, setupRouter(stub), Request{Action: ActionGreet})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !stub.lastRespond.IsFirstMessage {
		t.Fatal("greet must mark the first message")
	}
	var reply model.Reply
	json.Unmarshal(resp.Body.Bytes(), &reply)
	if reply.Phase != model.PhasePersonalIntro || !reply.ShouldAskQuestion {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestRespondPassesUtterance(t *testing.T) {
	stub := &stubActions{}
	body := Request{Action: ActionRespond, UserSpeech: "I built a compiler", Context: model.Context{PreviousQuestions: []string{"q"}}}
	resp := post(t, setupRouter(stub), body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if stub.lastRespond.UserUtterance != "I built a compiler" || stub.lastRespond.IsFirstMessage {
		t.Fatalf("request = %+v", stub.lastRespond)
	}
}

func TestActionsReturnJSON(t *testing.T) {
	cases := []struct {
		action string
		key    string
	}{
		{ActionEvaluate, "overallScore"},
		{ActionGenerateQuestion, "category"},
		{ActionAcknowledge, "type"},
	}
	r := setupRouter(&stubActions{})
	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			resp := post(t, r, Request{Action: tc.action})
			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if _, ok := body[tc.key]; !ok {
				t.Fatalf("missing %q in %s", tc.key, resp.Body.String())
			}
		})
	}
}

func TestTTS(t *testing.T) {
	r := setupRouter(&stubActions{})
	resp := post(t, r, Request{Action: ActionTTS, Text: "Hello"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content type = %s", ct)
	}
	if resp.Header().Get("Content-Length") != "8" || resp.Body.String() != "ID3audio" {
		t.Fatalf("body = %q", resp.Body.String())
	}

	resp = post(t, r, Request{Action: ActionTTS, Text: "  "})
	if resp.Code != http.StatusBadRequest || !bytes.Contains(resp.Body.Bytes(), []byte("No text provided")) {
		t.Fatalf("empty text: %d %s", resp.Code, resp.Body.String())
	}
}

func TestTTSErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: no speech synthesizer", gateway.ErrConfiguration), http.StatusInternalServerError},
		{&gateway.RemoteCallError{Op: "synthesize", Err: errors.New("503")}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		resp := post(t, setupRouter(&stubActions{ttsErr: tc.err}), Request{Action: ActionTTS, Text: "hi"})
		if resp.Code != tc.code {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.code, resp.Code)
		}
	}
}

func TestUnknownActionAndBadBody(t *testing.T) {
	r := setupRouter(&stubActions{})
	if resp := post(t, r, Request{Action: "dance"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("unknown action: %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/interview", bytes.NewReader([]byte("{")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad body: %d", resp.Code)
	}
}

func TestGatewayNotConfigured(t *testing.T) {
	resp := post(t, setupRouter(nil), Request{Action: ActionRespond})
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var body map[string]string
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body["error"] != "llm gateway not configured" {
		t.Fatalf("body = %v", body)
	}
}
