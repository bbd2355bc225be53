package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	"github.com/zhouzirui/mock-interviewer/backend/internal/config"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/events"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/speech"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/store"
)

func TestNewStoreBackends(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	log := zap.NewNop()

	s, closeFn, err := NewStore(context.Background(), config.StoreConfig{Backend: config.StoreBackendMemory, Limit: 5}, clk, log)
	if err != nil || closeFn() != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := s.(*store.MemoryStore); !ok {
		t.Fatalf("memory backend = %T", s)
	}

	path := filepath.Join(t.TempDir(), "interviews.json")
	s, _, err = NewStore(context.Background(), config.StoreConfig{Backend: config.StoreBackendFile, Path: path, Limit: 5}, clk, log)
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if _, ok := s.(*store.FileStore); !ok {
		t.Fatalf("file backend = %T", s)
	}

	if _, _, err := NewStore(context.Background(), config.StoreConfig{Backend: config.StoreBackendRedis}, clk, log); err == nil {
		t.Fatal("redis without address should fail")
	}
}

func TestNewSynthesizer(t *testing.T) {
	log := zap.NewNop()

	synth, err := NewSynthesizer(config.SpeechConfig{Provider: config.SpeechProviderNone}, log)
	if err != nil || synth != nil {
		t.Fatalf("none = %v, %v", synth, err)
	}

	synth, err = NewSynthesizer(config.SpeechConfig{
		Provider: config.SpeechProviderOpenAI,
		OpenAI:   config.OpenAISpeechConfig{APIKey: "sk-test", Voice: "alloy", Speed: 1.1},
	}, log)
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, ok := synth.(*speech.OpenAISynthesizer); !ok {
		t.Fatalf("openai = %T", synth)
	}

	if _, err := NewSynthesizer(config.SpeechConfig{Provider: config.SpeechProviderVolcengine}, log); err == nil {
		t.Fatal("volcengine without credentials should fail")
	}
	if _, err := NewSynthesizer(config.SpeechConfig{Provider: "espeak"}, log); err == nil {
		t.Fatal("unknown provider should fail")
	}
}

func TestVoiceFollowsProvider(t *testing.T) {
	cfg := config.SpeechConfig{
		Provider:   config.SpeechProviderVolcengine,
		OpenAI:     config.OpenAISpeechConfig{Voice: "nova"},
		Volcengine: config.VolcengineSpeechConfig{TTSVoice: "zh_female", TTSSpeed: 1.2},
	}
	if v := Voice(cfg); v.Name != "zh_female" || v.Speed != 1.2 {
		t.Fatalf("voice = %+v", v)
	}
	cfg.Provider = config.SpeechProviderOpenAI
	if v := Voice(cfg); v.Name != "nova" {
		t.Fatalf("voice = %+v", v)
	}
}

func TestNewPublisher(t *testing.T) {
	p, err := NewPublisher(config.EventsConfig{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(events.Nop); !ok {
		t.Fatalf("disabled publisher = %T", p)
	}
	if _, err := NewPublisher(config.EventsConfig{Enabled: true}, zap.NewNop()); err == nil {
		t.Fatal("enabled without url should fail")
	}
}
