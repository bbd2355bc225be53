package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	speechmodel "github.com/zhouzirui/mock-interviewer/backend/internal/model/speech"
)

// DefaultVolcengineEndpoint 单向流式合成接口。
const DefaultVolcengineEndpoint = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"

const defaultVolcengineVoice = "en_female_amy_jupiter_bigtts"

// VolcengineOptions 火山引擎 TTS 参数。
type VolcengineOptions struct {
	AppID       string
	AccessToken string
	Endpoint    string
	Voice       speechmodel.Voice
	Timeout     time.Duration
}

// VolcengineSynthesizer 通过火山引擎 websocket 协议合成语音。
type VolcengineSynthesizer struct {
	opts   VolcengineOptions
	dialer *websocket.Dialer
	log    *zap.Logger
}

// NewVolcengineSynthesizer validates credentials and returns a synthesizer.
func NewVolcengineSynthesizer(opts VolcengineOptions, logger *zap.Logger) (*VolcengineSynthesizer, error) {
	opts.AppID = strings.TrimSpace(opts.AppID)
	opts.AccessToken = strings.TrimSpace(opts.AccessToken)
	if opts.AppID == "" || opts.AccessToken == "" {
		return nil, errors.New("volcengine speech config missing AppID or AccessToken")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultVolcengineEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VolcengineSynthesizer{
		opts:   opts,
		dialer: &websocket.Dialer{HandshakeTimeout: opts.Timeout},
		log:    logger,
	}, nil
}

type volcengineRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string                `json:"speaker"`
		Text        string                `json:"text"`
		AudioParams volcengineAudioParams `json:"audio_params"`
		Additions   string                `json:"additions,omitempty"`
		Language    string                `json:"language,omitempty"`
	} `json:"req_params"`
}

type volcengineAudioParams struct {
	Format          string  `json:"format"`
	SampleRate      int     `json:"sample_rate"`
	EnableTimestamp bool    `json:"enable_timestamp"`
	SpeedRatio      float32 `json:"speed_ratio,omitempty"`
	VolumeRatio     float32 `json:"volume_ratio,omitempty"`
}

type volcengineServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

// Synthesize tries each speaker/resource combination until one is accepted.
func (s *VolcengineSynthesizer) Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("TTS text is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	voice := req.Voice.WithDefaults(s.opts.Voice)
	var lastMismatch error
	for _, speaker := range speakerCandidates(voice.Name, s.opts.Voice.Name) {
		for _, resourceID := range resourceCandidates(speaker) {
			audio, err := s.synthesizeWith(ctx, req, voice, speaker, resourceID)
			if err == nil {
				return audio, nil
			}
			if !isResourceMismatch(err) {
				return nil, err
			}
			s.log.Info("tts resource mismatch, trying next",
				zap.String("speaker", speaker), zap.String("resource", resourceID))
			lastMismatch = err
		}
	}
	if lastMismatch != nil {
		return nil, lastMismatch
	}
	return nil, errors.New("TTS synthesis failed: no compatible speaker")
}

func (s *VolcengineSynthesizer) synthesizeWith(ctx context.Context, req *speechmodel.TTSRequest, voice speechmodel.Voice, speaker, resourceID string) (*speechmodel.Audio, error) {
	connectID := uuid.NewString()

	header := http.Header{}
	header.Set("X-Api-App-Key", s.opts.AppID)
	header.Set("X-Api-Access-Key", s.opts.AccessToken)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := s.dialer.DialContext(ctx, s.opts.Endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TTS websocket: %w", err)
	}
	defer conn.Close()
	if resp != nil {
		if logID := resp.Header.Get("X-Tt-Logid"); logID != "" {
			s.log.Debug("tts connected", zap.String("logid", logID))
		}
	}

	// ctx 取消时关闭连接以打断阻塞的读。
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	payload, err := json.Marshal(buildVolcengineRequest(req, voice, speaker))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TTS request: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, newRequestFrame(payload).marshal()); err != nil {
		return nil, fmt.Errorf("failed to send TTS request: %w", err)
	}

	var (
		audio    bytes.Buffer
		reqID    string
		duration int64
	)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to read TTS response: %w", err)
		}

		f, err := unmarshalFrame(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TTS frame: %w", err)
		}
		body, err := f.body()
		if err != nil {
			return nil, fmt.Errorf("failed to decompress TTS payload: %w", err)
		}

		switch f.kind {
		case frameError:
			return nil, fmt.Errorf("TTS error %d: %s", f.errorCode, string(body))

		case frameAudioOnlyServer:
			audio.Write(body)

		case frameFullServer:
			var msg volcengineServerMessage
			if len(body) > 0 {
				if err := json.Unmarshal(body, &msg); err != nil {
					s.log.Warn("tts payload not json", zap.Error(err))
				} else {
					if msg.Code != 0 && msg.Code != 3000 {
						return nil, fmt.Errorf("TTS API error %d: %s", msg.Code, msg.Message)
					}
					if msg.ReqID != "" {
						reqID = msg.ReqID
					}
					if ms, err := strconv.ParseInt(msg.Addition.Duration, 10, 64); err == nil {
						duration = ms
					}
					if msg.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(msg.Data)
						if err != nil {
							return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
						}
						audio.Write(chunk)
					}
				}
			}

			finished := (f.hasEvent() && f.event == eventSessionFinished) || f.last() || msg.Sequence < 0
			if !finished {
				continue
			}
			if audio.Len() == 0 {
				return nil, errors.New("TTS audio is empty")
			}
			if reqID == "" {
				reqID = connectID
			}
			return &speechmodel.Audio{
				UtteranceID: req.UtteranceID,
				Data:        audio.Bytes(),
				Format:      "mp3",
				Duration:    duration,
				RequestID:   reqID,
				CreatedAt:   time.Now(),
			}, nil

		default:
			s.log.Debug("tts unexpected frame", zap.Uint8("type", uint8(f.kind)))
		}
	}
}

func buildVolcengineRequest(req *speechmodel.TTSRequest, voice speechmodel.Voice, speaker string) *volcengineRequest {
	out := &volcengineRequest{}
	out.User.UID = req.UtteranceID
	if out.User.UID == "" {
		out.User.UID = uuid.NewString()
	}
	out.ReqParams.Speaker = speaker
	out.ReqParams.Text = req.Text
	// 该接口不支持 wav，统一使用 mp3
	out.ReqParams.AudioParams.Format = "mp3"
	out.ReqParams.AudioParams.SampleRate = 24000
	out.ReqParams.AudioParams.EnableTimestamp = true
	if voice.Speed > 0 && voice.Speed != 1.0 {
		out.ReqParams.AudioParams.SpeedRatio = voice.Speed
	}
	if voice.Volume > 0 && voice.Volume != 1.0 {
		out.ReqParams.AudioParams.VolumeRatio = voice.Volume
	}
	out.ReqParams.Language = voice.Language
	out.ReqParams.Additions = `{"disable_markdown_filter":false}`
	return out
}

func resourceCandidates(voice string) []string {
	const (
		defaultResource = "volc.service_type.10029"
		megaResource    = "volc.megatts.default"
		seedResource    = "seed-tts-2.0"
	)

	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{megaResource}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{seedResource, defaultResource}
		}
	}
	return []string{defaultResource, seedResource}
}

func speakerCandidates(requested, fallback string) []string {
	var candidates []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "default") {
			return
		}
		for _, existing := range candidates {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		candidates = append(candidates, s)
	}

	add(requested)
	add(fallback)
	add(defaultVolcengineVoice)
	return candidates
}

func isResourceMismatch(err error) bool {
	return err != nil && strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource")
}
