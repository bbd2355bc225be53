package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/app"
	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	"github.com/zhouzirui/mock-interviewer/backend/internal/config"
	"github.com/zhouzirui/mock-interviewer/backend/internal/handler"
	"github.com/zhouzirui/mock-interviewer/backend/internal/handler/session"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/gateway"
	"github.com/zhouzirui/mock-interviewer/backend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := logger.Init(logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.L()

	clk := clock.Real()

	synth, err := app.NewSynthesizer(cfg.Speech, lg)
	if err != nil {
		lg.Warn("speech synthesizer unavailable, falling back to local voice", zap.Error(err))
		synth = nil
	} else if synth == nil {
		lg.Info("语音合成未配置，使用客户端本地语音")
	} else {
		lg.Info("speech synthesizer initialized", zap.String("provider", cfg.Speech.Provider))
	}

	// Initialize LLM gateway
	var gw *gateway.Gateway
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			lg.Warn("failed to initialize chat model, continuing without LLM gateway", zap.Error(err))
		} else if gw, err = gateway.New(ctx, chatModel, synth, gateway.Config{
			HistoryLimit: cfg.AI.HistoryLimit,
			Voice:        app.Voice(cfg.Speech),
		}, lg.Named("gateway")); err != nil {
			lg.Warn("failed to initialize LLM gateway", zap.Error(err))
			gw = nil
		} else {
			lg.Info("LLM gateway initialized", zap.String("model", cfg.AI.Model))
		}
	} else {
		lg.Info("Ark 凭证未配置，跳过面试官模型初始化")
	}

	st, closeStore, err := app.NewStore(ctx, cfg.Store, clk, lg)
	if err != nil {
		lg.Fatal("failed to open interview store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			lg.Warn("close interview store", zap.Error(err))
		}
	}()

	publisher, err := app.NewPublisher(cfg.Events, lg)
	if err != nil {
		lg.Fatal("failed to configure event publisher", zap.Error(err))
	}
	defer publisher.Close()

	router := handler.NewRouter(handler.Dependencies{
		Gateway: gw,
		Store:   st,
		Session: session.Dependencies{
			Synthesizer: synth,
			Publisher:   publisher,
			Clock:       clk,
			Interview:   cfg.Interview,
			Voice:       app.Voice(cfg.Speech),
		},
		Logger: lg,
	})

	startServer(ctx, cfg.Server, router, lg)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, lg *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	lg.Info("mock interviewer backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		lg.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
