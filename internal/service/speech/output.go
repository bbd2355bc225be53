// Package speech 负责面试官的语音输出：远端合成、播放、本地兜底与打断。
package speech

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	speechmodel "github.com/zhouzirui/mock-interviewer/backend/internal/model/speech"
)

// ErrNoSynthesizer 未配置远端合成器或播放端。
var ErrNoSynthesizer = errors.New("no speech synthesizer available")

// Synthesizer turns text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *speechmodel.TTSRequest) (*speechmodel.Audio, error)
}

// Player plays audio on the candidate's device and blocks until playback ends
// or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, audio *speechmodel.Audio) error
}

// LocalSynthesizer speaks text with an on-device voice, blocking like Player.
type LocalSynthesizer interface {
	SpeakLocal(ctx context.Context, utteranceID, text string) error
}

// OutputOptions 输出通道的可选参数。
type OutputOptions struct {
	Voice speechmodel.Voice
	// OnIdle is invoked after an utterance finishes on its own or fails.
	OnIdle func(utteranceID string)
}

// Output 独占音频输出通道，同一时刻最多一段语音。
type Output struct {
	synth  Synthesizer
	player Player
	local  LocalSynthesizer
	opts   OutputOptions
	log    *zap.Logger

	mu       sync.Mutex
	speaking bool
	current  string
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewOutput wires the primary synthesizer, the audio player and the local fallback.
// Any of them may be nil; with none available Speak still claims and releases the channel.
func NewOutput(synth Synthesizer, player Player, local LocalSynthesizer, opts OutputOptions, logger *zap.Logger) *Output {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Output{
		synth:  synth,
		player: player,
		local:  local,
		opts:   opts,
		log:    logger,
	}
}

// Speak claims the channel and plays text asynchronously. It returns false
// without side effects when something is already speaking or text is blank.
func (o *Output) Speak(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	o.mu.Lock()
	if o.speaking {
		o.mu.Unlock()
		return false
	}
	playCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	done := make(chan struct{})
	o.speaking = true
	o.current = id
	o.cancel = cancel
	o.done = done
	o.mu.Unlock()

	go o.run(playCtx, id, text, done)
	return true
}

// Cancel halts the current utterance and clears the speaking flag. No-op when idle.
func (o *Output) Cancel() {
	o.mu.Lock()
	if !o.speaking {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	id := o.current
	o.speaking = false
	o.current = ""
	o.cancel = nil
	o.mu.Unlock()

	cancel()
	o.log.Debug("speech cancelled", zap.String("utterance_id", id))
}

// IsSpeaking reports whether the channel is held.
func (o *Output) IsSpeaking() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.speaking
}

// Wait blocks until the most recent utterance goroutine has exited.
func (o *Output) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (o *Output) run(ctx context.Context, id, text string, done chan struct{}) {
	defer o.release(id, done)

	err := o.playRemote(ctx, id, text)
	if err == nil || ctx.Err() != nil {
		return
	}

	if o.local == nil {
		o.log.Warn("remote speech failed and no local synthesizer", zap.String("utterance_id", id), zap.Error(err))
		return
	}
	o.log.Info("remote speech failed, falling back to local voice", zap.String("utterance_id", id), zap.Error(err))
	if err := o.local.SpeakLocal(ctx, id, text); err != nil && ctx.Err() == nil {
		o.log.Warn("local speech failed", zap.String("utterance_id", id), zap.Error(err))
	}
}

func (o *Output) playRemote(ctx context.Context, id, text string) error {
	if o.synth == nil || o.player == nil {
		return ErrNoSynthesizer
	}
	audio, err := o.synth.Synthesize(ctx, &speechmodel.TTSRequest{
		UtteranceID: id,
		Text:        text,
		Voice:       o.opts.Voice,
		Format:      "mp3",
	})
	if err != nil {
		return err
	}
	audio.UtteranceID = id
	return o.player.Play(ctx, audio)
}

// release 仅当该段语音仍是当前语音时才清除标志，避免覆盖打断后的新语音。
func (o *Output) release(id string, done chan struct{}) {
	o.mu.Lock()
	owned := o.current == id
	if owned {
		o.cancel()
		o.speaking = false
		o.current = ""
		o.cancel = nil
	}
	o.mu.Unlock()
	close(done)

	if owned && o.opts.OnIdle != nil {
		o.opts.OnIdle(id)
	}
}
