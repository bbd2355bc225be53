// Package session 实时面试会话的 WebSocket 入口：浏览器负责采集与播放，调度在服务端完成。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	"github.com/zhouzirui/mock-interviewer/backend/internal/config"
	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
	speechmodel "github.com/zhouzirui/mock-interviewer/backend/internal/model/speech"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/capture"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/scheduler"
	"github.com/zhouzirui/mock-interviewer/backend/internal/service/speech"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	// 截图 data URL 可能较大
	maxMessageSize = 8 << 20
)

// Dependencies 会话所需的服务。Synthesizer 与 Publisher 可以为空。
type Dependencies struct {
	Gateway     scheduler.Gateway
	Synthesizer speech.Synthesizer
	Saver       scheduler.Saver
	Publisher   scheduler.Publisher
	Clock       clock.Clock
	Interview   config.InterviewConfig
	Voice       speechmodel.Voice
	Logger      *zap.Logger
}

// Handler serves the live session websocket.
type Handler struct {
	deps     Dependencies
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// New 创建WebSocket处理器
func New(deps Dependencies) *Handler {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Handler{
		deps: deps,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		log: deps.Logger.Named("ws"),
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session/ws", h.handleWebSocket)
}

// conversation bundles the per-connection components.
type conversation struct {
	client *client
	sched  *scheduler.Scheduler
	output *speech.Output
	screen *capture.Screen
	mic    *capture.Speech
	log    *zap.Logger

	wg sync.WaitGroup
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.deps.Gateway == nil || h.deps.Saver == nil {
		http.Error(w, "interview session unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	log := h.log.With(zap.String("session_id", sessionID))
	log.Info("new connection")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conv, err := h.newConversation(conn, sessionID, log)
	if err != nil {
		log.Error("session setup failed", zap.Error(err))
		return
	}
	defer func() {
		cancel()
		conv.shutdown()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, conv.client)

	conv.client.send(OutConnected, map[string]any{
		"debounceMs":      h.deps.Interview.DebounceWindow.Milliseconds(),
		"frameIntervalMs": h.deps.Interview.FrameInterval.Milliseconds(),
		"remoteSpeech":    h.deps.Synthesizer != nil,
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		conv.handleMessage(ctx, &msg)
	}
}

func (h *Handler) newConversation(conn *websocket.Conn, sessionID string, log *zap.Logger) (*conversation, error) {
	conv := &conversation{log: log}
	conv.client = newClient(conn, sessionID, h.deps.Clock, log)

	conv.output = speech.NewOutput(h.deps.Synthesizer, conv.client, conv.client, speech.OutputOptions{
		Voice: h.deps.Voice,
		OnIdle: func(id string) {
			conv.sched.OnSpeechIdle(id)
		},
	}, log.Named("speech"))

	sched, err := scheduler.New(sessionID, scheduler.Options{
		Gateway:   h.deps.Gateway,
		Speaker:   conv.output,
		Saver:     h.deps.Saver,
		Publisher: h.deps.Publisher,
		Clock:     h.deps.Clock,
		Config: scheduler.Config{
			DebounceWindow:     h.deps.Interview.DebounceWindow,
			DuplicateThreshold: h.deps.Interview.DuplicateThreshold,
			MinUtteranceLength: h.deps.Interview.MinUtteranceLength,
			GreetingDelay:      h.deps.Interview.GreetingDelay,
		},
		Listener: conv.forward,
		Logger:   log.Named("scheduler"),
	})
	if err != nil {
		return nil, err
	}
	conv.sched = sched

	conv.screen = capture.NewScreen(h.deps.Clock, h.deps.Interview.FrameInterval, conv.onScreen, log.Named("capture"))
	conv.mic = capture.NewSpeech(conv.client, h.deps.Clock, h.deps.Interview.RestartDelay, conv.onSpeech, log.Named("capture"))
	return conv, nil
}

func (c *conversation) handleMessage(ctx context.Context, msg *inboundMessage) {
	switch msg.Type {
	case MsgStart:
		c.sched.Start(ctx)
		if err := c.mic.Start(ctx); err != nil {
			c.client.sendError("speech recognition unavailable")
		}

	case MsgEnd:
		c.mic.Stop()
		c.screen.Revoke()
		c.async(func() {
			if _, err := c.sched.EndSession(ctx); err != nil {
				if errors.Is(err, scheduler.ErrNotActive) {
					c.client.sendError("no active interview")
					return
				}
				c.log.Error("end session failed", zap.Error(err))
			}
		})

	case MsgSpeech:
		var payload SpeechMessage
		if !c.decode(msg, &payload) {
			return
		}
		c.mic.OnResult(payload.Text, payload.IsFinal)

	case MsgRecognitionError:
		var payload CodeMessage
		if !c.decode(msg, &payload) {
			return
		}
		c.mic.OnError(payload.Code)

	case MsgRecognitionEnd:
		c.mic.OnEnd()

	case MsgScreenFrame:
		var payload FrameMessage
		if !c.decode(msg, &payload) {
			return
		}
		if !c.screen.Active() {
			c.screen.Activate()
		}
		c.screen.Push(interview.ScreenFrame{Image: payload.Image, Text: payload.Text})

	case MsgScreenRevoked:
		var payload CodeMessage
		if len(msg.Data) > 0 && !c.decode(msg, &payload) {
			return
		}
		c.screen.Revoke()
		if capture.IsMediaAccess(payload.Code) {
			err := &capture.MediaAccessError{Source: "screen", Code: payload.Code}
			c.client.send(OutMediaError, mediaErrorPayload{Source: err.Source, Code: err.Code, Message: err.Error()})
		}

	case MsgPlaybackDone:
		var payload PlaybackMessage
		if !c.decode(msg, &payload) {
			return
		}
		c.client.ack(payload)

	case MsgTriggerNext:
		c.async(func() {
			if _, err := c.sched.TriggerNext(ctx); err != nil {
				c.log.Warn("manual trigger failed", zap.Error(err))
			}
		})

	default:
		c.client.sendError("unsupported message type: " + msg.Type)
	}
}

// async runs slow scheduler calls off the read loop so acks keep flowing.
func (c *conversation) async(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

func (c *conversation) decode(msg *inboundMessage, dst any) bool {
	if err := json.Unmarshal(msg.Data, dst); err != nil {
		c.client.sendError("invalid " + msg.Type + " payload")
		return false
	}
	return true
}

// forward translates scheduler events into client messages.
func (c *conversation) forward(ev scheduler.Event) {
	switch ev.Kind {
	case scheduler.EventState:
		c.client.send(OutState, c.sched.Snapshot())
	case scheduler.EventReply:
		c.client.send(OutReply, ev.Reply)
	case scheduler.EventSaved:
		c.client.send(OutSaved, ev.Saved)
	case scheduler.EventError:
		c.client.sendError(ev.Err.Error())
	}
}

func (c *conversation) onScreen(ev capture.ScreenEvent) {
	switch ev.Kind {
	case capture.ScreenFrame:
		c.sched.OnScreenFrame(ev.Frame)
	case capture.ScreenActivated:
		c.client.send(OutScreen, map[string]bool{"active": true})
	case capture.ScreenDeactivated:
		c.client.send(OutScreen, map[string]bool{"active": false})
	}
}

func (c *conversation) onSpeech(ev capture.SpeechEvent) {
	switch ev.Kind {
	case capture.SpeechInterim:
		c.sched.OnSpeechFragment(ev.Text, false)
		c.client.send(OutTranscript, SpeechMessage{Text: ev.Text, IsFinal: false})
	case capture.SpeechFinal:
		c.sched.OnSpeechFragment(ev.Text, true)
		c.client.send(OutTranscript, SpeechMessage{Text: ev.Text, IsFinal: true})
	case capture.SpeechMediaDenied:
		var mediaErr *capture.MediaAccessError
		if errors.As(ev.Err, &mediaErr) {
			c.client.send(OutMediaError, mediaErrorPayload{Source: mediaErr.Source, Code: mediaErr.Code, Message: mediaErr.Error()})
		}
	case capture.SpeechError:
		c.client.sendError(ev.Err.Error())
	}
}

// shutdown stops every component once the socket is gone. The connection
// context must already be cancelled so pending playback returns.
func (c *conversation) shutdown() {
	c.mic.Stop()
	c.screen.Revoke()
	c.wg.Wait()
	c.sched.Close()
	c.output.Wait()
	c.log.Info("connection closed")
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, c *client) {
	ticker := h.deps.Clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
