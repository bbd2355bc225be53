package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/clock"
	speechmodel "github.com/zhouzirui/mock-interviewer/backend/internal/model/speech"
)

const writeTimeout = 10 * time.Second

// client is the browser end of a session. It plays audio, speaks with the
// on-device voice and drives the browser recognizer.
type client struct {
	conn      *websocket.Conn
	sessionID string
	clock     clock.Clock
	log       *zap.Logger

	writeMu sync.Mutex

	mu   sync.Mutex
	acks map[string]chan error
}

func newClient(conn *websocket.Conn, sessionID string, clk clock.Clock, logger *zap.Logger) *client {
	return &client{
		conn:      conn,
		sessionID: sessionID,
		clock:     clk,
		log:       logger,
		acks:      make(map[string]chan error),
	}
}

func (c *client) send(msgType string, data any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := c.conn.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: c.clock.Now().UnixMilli(),
	})
	if err != nil {
		c.log.Debug("write message failed", zap.String("type", msgType), zap.Error(err))
	}
	return err
}

func (c *client) sendError(message string) {
	c.send(OutError, map[string]string{"message": message})
}

func (c *client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// Play sends the audio and waits for playback_done.
func (c *client) Play(ctx context.Context, audio *speechmodel.Audio) error {
	return c.await(ctx, audio.UtteranceID, OutAudio, audioPayload{
		ID:          audio.UtteranceID,
		Format:      audio.Format,
		ContentType: audio.ContentType(),
		AudioData:   audio.Data,
		Duration:    audio.Duration,
	})
}

// SpeakLocal asks the browser to use speechSynthesis.
func (c *client) SpeakLocal(ctx context.Context, utteranceID, text string) error {
	return c.await(ctx, utteranceID, OutSpeakLocal, speakLocalPayload{ID: utteranceID, Text: text})
}

func (c *client) await(ctx context.Context, id, msgType string, payload any) error {
	ch := make(chan error, 1)
	c.mu.Lock()
	c.acks[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.acks, id)
		c.mu.Unlock()
	}()

	if err := c.send(msgType, payload); err != nil {
		return err
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		c.send(OutStopAudio, map[string]string{"id": id})
		return ctx.Err()
	}
}

// ack resolves a pending Play or SpeakLocal. Unknown ids are ignored.
func (c *client) ack(msg PlaybackMessage) {
	c.mu.Lock()
	ch, ok := c.acks[msg.ID]
	c.mu.Unlock()
	if !ok {
		return
	}
	var err error
	if msg.Error != "" {
		err = errors.New("client playback failed: " + msg.Error)
	}
	select {
	case ch <- err:
	default:
	}
}

// Start asks the browser to begin speech recognition.
func (c *client) Start(context.Context) error {
	return c.send(OutRecognitionStart, nil)
}

// Stop asks the browser to stop speech recognition.
func (c *client) Stop() {
	c.send(OutRecognitionStop, nil)
}
