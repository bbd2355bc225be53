package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
)

func sampleRecord(score float64) interview.SavedInterview {
	return interview.SavedInterview{
		Duration:      125,
		OverallScore:  score,
		QuestionCount: 1,
		Transcript:    "I built a chat app",
		Evaluation:    interview.FallbackEvaluation(),
		Questions:     []interview.QA{{Question: "What did you build?", Answer: "I built a chat app"}},
	}
}

func exerciseStore(t *testing.T, s Store, clk *clock.Fake) {
	t.Helper()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		rec, err := s.Save(ctx, sampleRecord(float64(i)))
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		if !strings.HasPrefix(rec.ID, "interview-") || rec.Date.IsZero() {
			t.Fatalf("record not stamped: %+v", rec)
		}
		ids = append(ids, rec.ID)
		clk.Advance(time.Second)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("list length = %d, want capped at 3", len(list))
	}
	if list[0].ID != ids[3] || list[2].ID != ids[1] {
		t.Fatalf("order = %s, %s", list[0].ID, list[2].ID)
	}

	got, err := s.Get(ctx, ids[2])
	if err != nil || got.OverallScore != 2 {
		t.Fatalf("get = %+v, %v", got, err)
	}
	if _, err := s.Get(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("evicted record err = %v", err)
	}
	if _, err := s.Get(ctx, ""); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("empty id err = %v", err)
	}

	got.OverallScore = 9
	if _, err := s.Save(ctx, got); err != nil {
		t.Fatalf("resave: %v", err)
	}
	if list, _ = s.List(ctx); len(list) != 3 || list[0].ID != ids[2] || list[0].OverallScore != 9 {
		t.Fatalf("resave should replace and move to front: %+v", list)
	}

	if err := s.Delete(ctx, ids[2]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, ids[2]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
	if list, _ = s.List(ctx); len(list) != 2 {
		t.Fatalf("after delete = %d", len(list))
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if list, _ = s.List(ctx); len(list) != 0 {
		t.Fatalf("after clear = %d", len(list))
	}
}

func TestMemoryStore(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	exerciseStore(t, NewMemoryStore(3, clk), clk)
}

func TestFileStore(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "nested", "interviews.json")
	s, err := NewFileStore(path, 3, clk, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	exerciseStore(t, s, clk)
}

func TestFileStoreSurvivesReopenAndCorruption(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	path := filepath.Join(t.TempDir(), "interviews.json")
	first, _ := NewFileStore(path, 0, clk, nil)
	rec, err := first.Save(context.Background(), sampleRecord(7))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	second, _ := NewFileStore(path, 0, clk, nil)
	got, err := second.Get(context.Background(), rec.ID)
	if err != nil || got.Transcript != rec.Transcript {
		t.Fatalf("reopened get = %+v, %v", got, err)
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	list, err := second.List(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("corrupt file list = %v, %v", list, err)
	}
}

func TestSaveKeepsExplicitID(t *testing.T) {
	s := NewMemoryStore(0, clock.NewFake(time.Unix(0, 0)))
	rec := sampleRecord(5)
	rec.ID = "interview-42"
	s.Save(context.Background(), rec)
	s.Save(context.Background(), rec)
	list, _ := s.List(context.Background())
	if len(list) != 1 || list[0].ID != "interview-42" {
		t.Fatalf("list = %+v", list)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, RedisOptions{Addr: addr})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	key := "mock-interviewer:test:" + time.Now().Format("150405.000000")
	t.Cleanup(func() { client.Del(ctx, key) })

	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	exerciseStore(t, NewRedisStore(client, key, 3, clk, nil), clk)
}

func TestExportJSON(t *testing.T) {
	rec := sampleRecord(6.5)
	rec.ID = "interview-1"
	var buf bytes.Buffer
	if err := ExportJSON(&buf, rec); err != nil {
		t.Fatalf("export: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	for _, key := range []string{"id", "date", "duration", "overallScore", "questionCount", "transcript", "evaluation", "questions"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing %q", key)
		}
	}
}

func TestRenderReport(t *testing.T) {
	rec := sampleRecord(6.5)
	rec.Date = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	rec.Questions[0].Answer = "<script>alert(1)</script>"
	rec.Evaluation.Strengths = []string{"Clear architecture"}

	var buf bytes.Buffer
	if err := RenderReport(&buf, rec); err != nil {
		t.Fatalf("render: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"March 1, 2026 09:30", "2m 5s", "6.5/10", "Clear architecture", "Q1.", "&lt;script&gt;"} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(html, "<script>alert") {
		t.Error("answer was not escaped")
	}
}
