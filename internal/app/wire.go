// Package app 根据配置组装存储、语音合成与事件投递，供 API 服务与命令行共用。
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	"github.com/zhouzirui/mock-interviewer/backend/internal/config"
	speechmodel "github.com/zhouzirui/mock-interviewer/backend/internal/model/speech"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/events"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/speech"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/store"
)

// NewStore opens the configured backend. The returned close func is never nil.
func NewStore(ctx context.Context, cfg config.StoreConfig, clk clock.Clock, log *zap.Logger) (store.Store, func() error, error) {
	noop := func() error { return nil }
	log = log.Named("store")

	switch cfg.Backend {
	case config.StoreBackendMemory:
		return store.NewMemoryStore(cfg.Limit, clk), noop, nil
	case config.StoreBackendRedis:
		client, err := store.NewRedisClient(ctx, store.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, noop, err
		}
		return store.NewRedisStore(client, cfg.Redis.Key, cfg.Limit, clk, log), client.Close, nil
	default:
		s, err := store.NewFileStore(cfg.Path, cfg.Limit, clk, log)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	}
}

// NewSynthesizer returns the remote synthesizer for the configured provider,
// or nil when speech output should stay on the client's local voice.
func NewSynthesizer(cfg config.SpeechConfig, log *zap.Logger) (speech.Synthesizer, error) {
	switch cfg.Provider {
	case config.SpeechProviderOpenAI:
		synth, err := speech.NewOpenAISynthesizer(speech.OpenAIOptions{
			BaseURL: cfg.OpenAI.BaseURL,
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			Voice:   Voice(cfg),
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return synth, nil
	case config.SpeechProviderVolcengine:
		synth, err := speech.NewVolcengineSynthesizer(speech.VolcengineOptions{
			AppID:       cfg.Volcengine.AppID,
			AccessToken: cfg.Volcengine.AccessToken,
			Voice:       Voice(cfg),
			Timeout:     cfg.Timeout,
		}, log.Named("speech"))
		if err != nil {
			return nil, err
		}
		return synth, nil
	case config.SpeechProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Provider)
	}
}

// Voice 当前语音提供方的默认音色。
func Voice(cfg config.SpeechConfig) speechmodel.Voice {
	switch cfg.Provider {
	case config.SpeechProviderVolcengine:
		return speechmodel.Voice{
			Name:     cfg.Volcengine.TTSVoice,
			Speed:    cfg.Volcengine.TTSSpeed,
			Volume:   cfg.Volcengine.TTSVolume,
			Language: cfg.Volcengine.TTSLanguage,
		}
	default:
		return speechmodel.Voice{
			Name:  cfg.OpenAI.Voice,
			Speed: float32(cfg.OpenAI.Speed),
		}
	}
}

// NewPublisher returns a RabbitMQ publisher when events are enabled.
func NewPublisher(cfg config.EventsConfig, log *zap.Logger) (events.Publisher, error) {
	if !cfg.Enabled {
		return events.Nop{}, nil
	}
	p, err := events.NewRabbitPublisher(cfg.URL, cfg.Queue, log.Named("events"))
	if err != nil {
		return nil, err
	}
	return p, nil
}
