package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
	speechmodel "github.com/zhouzirui/mock-interviewer/backend/internal/model/speech"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/store"
)

type fakeSynth struct {
	got *speechmodel.TTSRequest
	err error
}

func (f *fakeSynth) Synthesize(_ context.Context, req *speechmodel.TTSRequest) (*speechmodel.Audio, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &speechmodel.Audio{Data: []byte("ID3audio"), Format: "mp3"}, nil
}

func seededStore(t *testing.T) (*store.MemoryStore, interview.SavedInterview) {
	t.Helper()
	s := store.NewMemoryStore(10, clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	saved, err := s.Save(context.Background(), interview.SavedInterview{
		Duration:      125,
		OverallScore:  7.4,
		QuestionCount: 2,
		Transcript:    "I would use a heap",
		Evaluation: interview.Evaluation{
			TechnicalDepth: 7,
			Feedback:       "Solid fundamentals.",
			Strengths:      []string{"Clear reasoning"},
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s, saved
}

func run(t *testing.T, opts Options, stdin string, args ...string) (string, error) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	cmd := NewRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListAndShow(t *testing.T) {
	s, saved := seededStore(t)

	out, err := run(t, Options{Store: s}, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, saved.ID) || !strings.Contains(out, "2:05") || !strings.Contains(out, "7.4") {
		t.Fatalf("list output = %q", out)
	}

	out, err = run(t, Options{Store: s}, "", "show", saved.ID)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"Overall:   7.4 / 10", "Solid fundamentals.", "- Clear reasoning"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestListEmpty(t *testing.T) {
	out, err := run(t, Options{Store: store.NewMemoryStore(5, nil)}, "", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No saved interviews.") {
		t.Fatalf("output = %q", out)
	}
}

func TestShowUnknownID(t *testing.T) {
	s, _ := seededStore(t)
	_, err := run(t, Options{Store: s}, "", "show", "missing")
	if err == nil || !strings.Contains(err.Error(), `interview "missing" not found`) {
		t.Fatalf("err = %v", err)
	}
}

func TestExportAndReportToFile(t *testing.T) {
	s, saved := seededStore(t)
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "out.json")
	if _, err := run(t, Options{Store: s}, "", "export", saved.ID, "-o", jsonPath); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"overallScore": 7.4`) {
		t.Fatalf("export = %s", data)
	}

	out, err := run(t, Options{Store: s}, "", "report", saved.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out, "<html") || !strings.Contains(out, "I would use a heap") {
		t.Fatalf("report = %q", out)
	}
}

func TestDeleteAndClear(t *testing.T) {
	s, saved := seededStore(t)

	if _, err := run(t, Options{Store: s}, "", "delete", saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(context.Background(), saved.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get after delete = %v", err)
	}

	s, _ = seededStore(t)
	out, err := run(t, Options{Store: s}, "n\n", "clear")
	if err != nil || !strings.Contains(out, "Aborted.") {
		t.Fatalf("clear declined: %q %v", out, err)
	}
	if records, _ := s.List(context.Background()); len(records) != 1 {
		t.Fatalf("records after abort = %d", len(records))
	}

	if _, err := run(t, Options{Store: s}, "", "clear", "--yes"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if records, _ := s.List(context.Background()); len(records) != 0 {
		t.Fatalf("records after clear = %d", len(records))
	}
}

func TestSpeakWritesAudio(t *testing.T) {
	synth := &fakeSynth{}
	path := filepath.Join(t.TempDir(), "hello.mp3")

	out, err := run(t, Options{Synthesizer: synth}, "", "speak", "hello", "there", "--voice", "alloy", "-o", path)
	if err != nil {
		t.Fatalf("speak: %v", err)
	}
	if synth.got.Text != "hello there" || synth.got.Voice.Name != "alloy" {
		t.Fatalf("request = %+v", synth.got)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "ID3audio" {
		t.Fatalf("file = %q %v", data, err)
	}
	if !strings.Contains(out, "Wrote 8 bytes (mp3)") {
		t.Fatalf("output = %q", out)
	}
}

func TestSpeakPropagatesFailure(t *testing.T) {
	synth := &fakeSynth{err: errors.New("quota exceeded")}
	_, err := run(t, Options{Synthesizer: synth}, "", "speak", "hi", "-o", filepath.Join(t.TempDir(), "x.mp3"))
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v", err)
	}
}
