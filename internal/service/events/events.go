// Package events 面试保存后向消息队列投递完成事件。
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/zhouzirui/mock-interviewer/backend/internal/model/interview"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "interview.completed"

// Completed is the message body published for every saved interview.
type Completed struct {
	InterviewID   string    `json:"interviewId"`
	Date          time.Time `json:"date"`
	Duration      int       `json:"duration"`
	OverallScore  float64   `json:"overallScore"`
	QuestionCount int       `json:"questionCount"`
}

// NewCompleted builds the event body from a saved interview.
func NewCompleted(record interview.SavedInterview) Completed {
	return Completed{
		InterviewID:   record.ID,
		Date:          record.Date,
		Duration:      record.Duration,
		OverallScore:  record.OverallScore,
		QuestionCount: record.QuestionCount,
	}
}

// Publisher delivers completion events.
type Publisher interface {
	PublishCompleted(ctx context.Context, record interview.SavedInterview) error
	Close() error
}

// Nop discards events; used when publishing is disabled.
type Nop struct{}

func (Nop) PublishCompleted(context.Context, interview.SavedInterview) error { return nil }
func (Nop) Close() error                                                      { return nil }

// RabbitPublisher publishes to a durable queue through the default exchange.
// The connection is dialled lazily and re-dialled after it drops.
type RabbitPublisher struct {
	url   string
	queue string
	log   *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewRabbitPublisher validates the settings without connecting.
func NewRabbitPublisher(url, queue string, logger *zap.Logger) (*RabbitPublisher, error) {
	if url == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RabbitPublisher{url: url, queue: queue, log: logger}, nil
}

// PublishCompleted sends one persistent JSON message.
func (p *RabbitPublisher) PublishCompleted(ctx context.Context, record interview.SavedInterview) error {
	body, err := json.Marshal(NewCompleted(record))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	conn, err := p.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(p.queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", p.queue, err)
	}

	err = ch.PublishWithContext(ctx, "", q.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    record.ID,
		Timestamp:    record.Date,
		Type:         "interview.completed",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	p.log.Info("completion event published", zap.String("interview_id", record.ID), zap.String("queue", q.Name))
	return nil
}

func (p *RabbitPublisher) connection() (*amqp.Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	p.conn = conn
	return conn, nil
}

// Close closes the connection if one was opened.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}
