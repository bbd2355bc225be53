// Package logger 基于 zap 的全局结构化日志。
package logger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var (
	mu      sync.RWMutex
	_logger = newTmpLogger()
)

// Options 控制日志级别与输出格式。
type Options struct {
	Level  string
	Pretty bool
}

// New 按配置构建 zap.Logger。
func New(opts Options) (*zap.Logger, error) {
	var c zap.Config
	var zapOpts []zap.Option
	if opts.Pretty {
		c = zap.NewDevelopmentConfig()
		zapOpts = append(zapOpts, zap.AddStacktrace(zap.ErrorLevel))
	} else {
		c = zap.NewProductionConfig()
	}

	levelName := strings.TrimSpace(opts.Level)
	if levelName == "" {
		levelName = "info"
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(levelName))); err != nil {
		return nil, fmt.Errorf("could not parse log level %s", levelName)
	}
	c.Level = level

	return c.Build(zapOpts...)
}

// Init 替换全局 logger。
func Init(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set 直接替换全局 logger，测试中常用 zap.NewNop()。
func Set(l *zap.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	_logger = l
	mu.Unlock()
}

// L 返回全局 logger。
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return _logger
}

// Ctx returns the global logger annotated with the request id carried by ctx, if any.
func Ctx(ctx context.Context) *zap.Logger {
	l := L()
	if ctx == nil {
		return l
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		return l.With(zap.String("request_id", reqID))
	}
	return l
}

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

func newTmpLogger() *zap.Logger {
	c := zap.NewProductionConfig()
	c.DisableStacktrace = true
	l, err := c.Build()
	if err != nil {
		panic(err)
	}
	return l
}
