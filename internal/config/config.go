package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	AI        AIConfig
	Speech    SpeechConfig
	Interview InterviewConfig
	Store     StoreConfig
	Events    EventsConfig
}

// Load 从环境变量与可选的 YAML 文件加载配置。
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}
	if err := readConfigFile(v); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(v)
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig(v)
	if err != nil {
		return nil, err
	}

	interview, err := loadInterviewConfig(v)
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Log:       LogConfig{Level: v.GetString("log.level"), Pretty: v.GetBool("log.pretty")},
		AI:        ai,
		Speech:    speech,
		Interview: interview,
		Store:     store,
		Events: EventsConfig{
			Enabled: v.GetBool("events.enabled"),
			URL:     strings.TrimSpace(v.GetString("events.url")),
			Queue:   strings.TrimSpace(v.GetString("events.queue")),
		},
	}, nil
}

// NewViper returns a viper instance with defaults and env bindings applied, without reading a file.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	_ = bindEnv(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("ai.base_url", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ai.region", "cn-beijing")
	v.SetDefault("ai.history_limit", 10)

	v.SetDefault("speech.provider", "")
	v.SetDefault("speech.timeout", 30)
	v.SetDefault("speech.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("speech.openai.model", "tts-1")
	v.SetDefault("speech.openai.voice", "nova")
	v.SetDefault("speech.openai.speed", 0.95)
	v.SetDefault("speech.volcengine.tts_speed", 1.0)
	v.SetDefault("speech.volcengine.tts_volume", 1.0)
	v.SetDefault("speech.volcengine.tts_language", "en-US")

	v.SetDefault("interview.debounce_window", "800ms")
	v.SetDefault("interview.duplicate_threshold", 20)
	v.SetDefault("interview.min_utterance_length", 5)
	v.SetDefault("interview.greeting_delay", "1500ms")
	v.SetDefault("interview.frame_interval", "5s")
	v.SetDefault("interview.restart_delay", "100ms")

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.path", "data/interviews.json")
	v.SetDefault("store.limit", 20)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.key", "mock-interviewer:history")

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.queue", "interview.completed")
}

// envBindings keeps the historical variable names working next to the dotted keys.
var envBindings = map[string][]string{
	"server.port":                    {"PORT"},
	"log.level":                      {"LOG_LEVEL"},
	"log.pretty":                     {"LOG_PRETTY"},
	"ai.api_key":                     {"ARK_API_KEY"},
	"ai.access_key":                  {"ARK_ACCESS_KEY"},
	"ai.secret_key":                  {"ARK_SECRET_KEY"},
	"ai.model":                       {"ARK_MODEL", "Model"},
	"ai.base_url":                    {"ARK_BASE_URL"},
	"ai.region":                      {"ARK_REGION"},
	"ai.temperature":                 {"ARK_TEMPERATURE"},
	"ai.top_p":                       {"ARK_TOP_P"},
	"ai.max_tokens":                  {"ARK_MAX_TOKENS"},
	"ai.history_limit":               {"AI_HISTORY_LIMIT"},
	"speech.provider":                {"SPEECH_PROVIDER"},
	"speech.timeout":                 {"SPEECH_TIMEOUT"},
	"speech.openai.base_url":         {"OPENAI_BASE_URL"},
	"speech.openai.api_key":          {"OPENAI_API_KEY"},
	"speech.openai.model":            {"OPENAI_TTS_MODEL"},
	"speech.openai.voice":            {"OPENAI_TTS_VOICE"},
	"speech.openai.speed":            {"OPENAI_TTS_SPEED"},
	"speech.volcengine.app_id":       {"SPEECH_APP_ID"},
	"speech.volcengine.token":        {"SPEECH_ACCESS_TOKEN", "SPEECH_API_KEY"},
	"speech.volcengine.tts_voice":    {"SPEECH_TTS_VOICE"},
	"speech.volcengine.tts_speed":    {"SPEECH_TTS_SPEED"},
	"speech.volcengine.tts_volume":   {"SPEECH_TTS_VOLUME"},
	"speech.volcengine.tts_language": {"SPEECH_TTS_LANGUAGE"},
	"interview.debounce_window":      {"INTERVIEW_DEBOUNCE_WINDOW"},
	"interview.duplicate_threshold":  {"INTERVIEW_DUPLICATE_THRESHOLD"},
	"interview.min_utterance_length": {"INTERVIEW_MIN_UTTERANCE_LENGTH"},
	"interview.greeting_delay":       {"INTERVIEW_GREETING_DELAY"},
	"interview.frame_interval":       {"INTERVIEW_FRAME_INTERVAL"},
	"interview.restart_delay":        {"INTERVIEW_RESTART_DELAY"},
	"store.backend":                  {"STORE_BACKEND"},
	"store.path":                     {"STORE_PATH"},
	"store.limit":                    {"STORE_LIMIT"},
	"store.redis.addr":               {"REDIS_ADDR"},
	"store.redis.password":           {"REDIS_PASSWORD"},
	"store.redis.db":                 {"REDIS_DB"},
	"store.redis.key":                {"REDIS_KEY"},
	"events.enabled":                 {"EVENTS_ENABLED"},
	"events.url":                     {"RABBITMQ_URL"},
	"events.queue":                   {"RABBITMQ_QUEUE"},
}

func bindEnv(v *viper.Viper) error {
	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

func readConfigFile(v *viper.Viper) error {
	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	explicit := path != ""
	if !explicit {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	port := strings.TrimSpace(v.GetString("server.port"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value %q: %w", port, err)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LogConfig 日志配置。
type LogConfig struct {
	Level  string
	Pretty bool
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	HistoryLimit int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY (or ARK_ACCESS_KEY/ARK_SECRET_KEY) and ARK_MODEL")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig(v *viper.Viper) (AIConfig, error) {
	temperature, err := optionalFloat(v, "ai.temperature")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := optionalFloat(v, "ai.top_p")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := optionalInt(v, "ai.max_tokens")
	if err != nil {
		return AIConfig{}, err
	}

	historyLimit, err := intValue(v, "ai.history_limit")
	if err != nil {
		return AIConfig{}, err
	}
	if historyLimit < 1 {
		historyLimit = 1
	}

	return AIConfig{
		APIKey:       trimmed(v, "ai.api_key"),
		AccessKey:    trimmed(v, "ai.access_key"),
		SecretKey:    trimmed(v, "ai.secret_key"),
		Model:        trimmed(v, "ai.model"),
		BaseURL:      trimmed(v, "ai.base_url"),
		Region:       trimmed(v, "ai.region"),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		HistoryLimit: historyLimit,
	}, nil
}

// Speech providers.
const (
	SpeechProviderNone       = "none"
	SpeechProviderOpenAI     = "openai"
	SpeechProviderVolcengine = "volcengine"
)

// SpeechConfig 描述语音合成相关配置。
type SpeechConfig struct {
	Provider   string
	Timeout    time.Duration
	OpenAI     OpenAISpeechConfig
	Volcengine VolcengineSpeechConfig
}

// OpenAISpeechConfig 兼容 OpenAI /audio/speech 接口的合成服务。
type OpenAISpeechConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Voice   string
	Speed   float64
}

// VolcengineSpeechConfig 火山引擎 TTS 配置。
type VolcengineSpeechConfig struct {
	AppID       string
	AccessToken string
	TTSVoice    string
	TTSSpeed    float32
	TTSVolume   float32
	TTSLanguage string
}

func loadSpeechConfig(v *viper.Viper) (SpeechConfig, error) {
	timeout, err := intValue(v, "speech.timeout")
	if err != nil {
		return SpeechConfig{}, err
	}

	openAISpeed, err := floatValue(v, "speech.openai.speed")
	if err != nil {
		return SpeechConfig{}, err
	}

	ttsSpeed, err := floatValue(v, "speech.volcengine.tts_speed")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsVolume, err := floatValue(v, "speech.volcengine.tts_volume")
	if err != nil {
		return SpeechConfig{}, err
	}

	cfg := SpeechConfig{
		Provider: strings.ToLower(trimmed(v, "speech.provider")),
		Timeout:  time.Duration(timeout) * time.Second,
		OpenAI: OpenAISpeechConfig{
			BaseURL: trimmed(v, "speech.openai.base_url"),
			APIKey:  trimmed(v, "speech.openai.api_key"),
			Model:   trimmed(v, "speech.openai.model"),
			Voice:   trimmed(v, "speech.openai.voice"),
			Speed:   openAISpeed,
		},
		Volcengine: VolcengineSpeechConfig{
			AppID:       trimmed(v, "speech.volcengine.app_id"),
			AccessToken: trimmed(v, "speech.volcengine.token"),
			TTSVoice:    trimmed(v, "speech.volcengine.tts_voice"),
			TTSSpeed:    float32(ttsSpeed),
			TTSVolume:   float32(ttsVolume),
			TTSLanguage: trimmed(v, "speech.volcengine.tts_language"),
		},
	}

	// 未显式指定时，按已有凭证推断。
	if cfg.Provider == "" {
		switch {
		case cfg.OpenAI.APIKey != "":
			cfg.Provider = SpeechProviderOpenAI
		case cfg.Volcengine.AppID != "" && cfg.Volcengine.AccessToken != "":
			cfg.Provider = SpeechProviderVolcengine
		default:
			cfg.Provider = SpeechProviderNone
		}
	}

	switch cfg.Provider {
	case SpeechProviderNone, SpeechProviderOpenAI, SpeechProviderVolcengine:
	default:
		return SpeechConfig{}, fmt.Errorf("invalid SPEECH_PROVIDER value %q", cfg.Provider)
	}

	return cfg, nil
}

// InterviewConfig 面试轮转相关的时间与阈值。
type InterviewConfig struct {
	DebounceWindow     time.Duration
	DuplicateThreshold int
	MinUtteranceLength int
	GreetingDelay      time.Duration
	FrameInterval      time.Duration
	RestartDelay       time.Duration
}

func loadInterviewConfig(v *viper.Viper) (InterviewConfig, error) {
	var (
		cfg InterviewConfig
		err error
	)

	if cfg.DebounceWindow, err = durationValue(v, "interview.debounce_window"); err != nil {
		return cfg, err
	}
	if cfg.GreetingDelay, err = durationValue(v, "interview.greeting_delay"); err != nil {
		return cfg, err
	}
	if cfg.FrameInterval, err = durationValue(v, "interview.frame_interval"); err != nil {
		return cfg, err
	}
	if cfg.RestartDelay, err = durationValue(v, "interview.restart_delay"); err != nil {
		return cfg, err
	}
	if cfg.DuplicateThreshold, err = intValue(v, "interview.duplicate_threshold"); err != nil {
		return cfg, err
	}
	if cfg.MinUtteranceLength, err = intValue(v, "interview.min_utterance_length"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Store backends.
const (
	StoreBackendFile   = "file"
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"
)

// StoreConfig 面试记录存储配置。
type StoreConfig struct {
	Backend string
	Path    string
	Limit   int
	Redis   RedisConfig
}

// RedisConfig Redis 连接配置。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

func loadStoreConfig(v *viper.Viper) (StoreConfig, error) {
	limit, err := intValue(v, "store.limit")
	if err != nil {
		return StoreConfig{}, err
	}
	if limit < 1 {
		return StoreConfig{}, fmt.Errorf("invalid STORE_LIMIT value %q: must be positive", strconv.Itoa(limit))
	}

	db, err := intValue(v, "store.redis.db")
	if err != nil {
		return StoreConfig{}, err
	}

	backend := strings.ToLower(trimmed(v, "store.backend"))
	switch backend {
	case StoreBackendFile, StoreBackendRedis, StoreBackendMemory:
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_BACKEND value %q", backend)
	}

	return StoreConfig{
		Backend: backend,
		Path:    trimmed(v, "store.path"),
		Limit:   limit,
		Redis: RedisConfig{
			Addr:     trimmed(v, "store.redis.addr"),
			Password: v.GetString("store.redis.password"),
			DB:       db,
			Key:      trimmed(v, "store.redis.key"),
		},
	}, nil
}

// EventsConfig 面试完成事件的投递配置。
type EventsConfig struct {
	Enabled bool
	URL     string
	Queue   string
}

func trimmed(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func optionalFloat(v *viper.Viper, key string) (*float64, error) {
	raw := trimmed(v, key)
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return &val, nil
}

func optionalInt(v *viper.Viper, key string) (*int, error) {
	raw := trimmed(v, key)
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return &val, nil
}

func intValue(v *viper.Viper, key string) (int, error) {
	val, err := optionalInt(v, key)
	if err != nil || val == nil {
		return 0, err
	}
	return *val, nil
}

func floatValue(v *viper.Viper, key string) (float64, error) {
	val, err := optionalFloat(v, key)
	if err != nil || val == nil {
		return 0, err
	}
	return *val, nil
}

func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	raw := trimmed(v, key)
	if raw == "" {
		return 0, nil
	}
	// 纯数字按毫秒处理。
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s value %q: negative duration", key, raw)
	}
	return d, nil
}
