package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	speechmodel "github.com/zhouzirui/mock-interviewer/backend/internal/model/speech"
)

// OpenAIOptions configures an OpenAI compatible /audio/speech endpoint.
type OpenAIOptions struct {
	BaseURL string
	APIKey  string
	Model   string
	Voice   speechmodel.Voice
	Timeout time.Duration
}

// OpenAISynthesizer 调用 OpenAI 兼容的语音合成接口。
type OpenAISynthesizer struct {
	client *resty.Client
	opts   OpenAIOptions
}

// NewOpenAISynthesizer requires an API key; the remaining options have defaults.
func NewOpenAISynthesizer(opts OpenAIOptions) (*OpenAISynthesizer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai speech config missing API key")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.Model == "" {
		opts.Model = "tts-1"
	}
	opts.Voice = opts.Voice.WithDefaults(speechmodel.Voice{Name: "nova", Speed: 0.95})
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetAuthToken(opts.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(opts.Timeout)

	return &OpenAISynthesizer{client: client, opts: opts}, nil
}

// Synthesize returns mp3 bytes for req.Text.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.Audio, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errors.New("TTS text is empty")
	}
	voice := req.Voice.WithDefaults(s.opts.Voice)

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"model":           s.opts.Model,
			"input":           text,
			"voice":           voice.Name,
			"speed":           voice.Speed,
			"response_format": "mp3",
		}).
		Post("/audio/speech")
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	if resp.IsError() {
		message := gjson.GetBytes(resp.Body(), "error.message").String()
		if message == "" {
			message = strings.TrimSpace(resp.String())
		}
		return nil, fmt.Errorf("speech request failed with status %d: %s", resp.StatusCode(), message)
	}
	if len(resp.Body()) == 0 {
		return nil, errors.New("speech response is empty")
	}

	return &speechmodel.Audio{
		UtteranceID: req.UtteranceID,
		Data:        resp.Body(),
		Format:      "mp3",
		RequestID:   resp.Header().Get("X-Request-Id"),
		CreatedAt:   time.Now(),
	}, nil
}
