// Package cli defines the Cobra commands of interviewctl, a local tool for
// browsing saved interviews and checking the configured speech provider.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/app"
	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	"github.com/zhouzirui/mock-interviewer/backend/internal/config"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/speech"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/store"
	"github.com/zhouzirui/mock-interviewer/backend/pkg/logger"
)

var version = "dev" // set via ldflags at build time

// Options 允许测试注入存储与合成器；为空时按配置创建。
type Options struct {
	Store       store.Store
	Synthesizer speech.Synthesizer
	Logger      *zap.Logger
}

type env struct {
	opts    Options
	cfg     *config.Config
	closers []func() error
	verbose bool
}

// NewRootCommand builds the interviewctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	e := &env{opts: opts}

	root := &cobra.Command{
		Use:   "interviewctl",
		Short: "Inspect saved mock interviews",
		Long: `interviewctl reads the interview store configured for the backend
(STORE_BACKEND, STORE_PATH, REDIS_*) and prints, exports or deletes
saved interviews. The speak command checks the speech provider.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return e.close()
		},
	}
	root.PersistentFlags().BoolVar(&e.verbose, "verbose", false, "Log at debug level")

	root.AddCommand(
		newListCommand(e),
		newShowCommand(e),
		newExportCommand(e),
		newReportCommand(e),
		newDeleteCommand(e),
		newClearCommand(e),
		newSpeakCommand(e),
	)
	return root
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}
	if err := NewRootCommand(Options{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (e *env) logger() *zap.Logger {
	if e.opts.Logger != nil {
		return e.opts.Logger
	}
	level := "warn"
	if e.verbose {
		level = "debug"
	}
	l, err := logger.New(logger.Options{Level: level, Pretty: true})
	if err != nil {
		return logger.L()
	}
	e.opts.Logger = l
	return l
}

func (e *env) config() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	e.cfg = cfg
	return cfg, nil
}

func (e *env) store(ctx context.Context) (store.Store, error) {
	if e.opts.Store != nil {
		return e.opts.Store, nil
	}
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	s, closeFn, err := app.NewStore(ctx, cfg.Store, clock.Real(), e.logger())
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	e.closers = append(e.closers, closeFn)
	e.opts.Store = s
	return s, nil
}

func (e *env) synthesizer() (speech.Synthesizer, error) {
	if e.opts.Synthesizer != nil {
		return e.opts.Synthesizer, nil
	}
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	synth, err := app.NewSynthesizer(cfg.Speech, e.logger())
	if err != nil {
		return nil, err
	}
	if synth == nil {
		return nil, fmt.Errorf("no speech provider configured; set SPEECH_PROVIDER")
	}
	e.opts.Synthesizer = synth
	return synth, nil
}

func (e *env) close() error {
	var first error
	for _, fn := range e.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	e.closers = nil
	return first
}
