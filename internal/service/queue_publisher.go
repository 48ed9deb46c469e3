// Package service publishes domain events to RabbitMQ.  Reservation
// events are delivered asynchronously so a slow or absent broker never
// delays an API response; verification codes are sent synchronously
// because the caller must know whether delivery was accepted.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/smartpark/internal/ledger"
	q "github.com/iliyamo/smartpark/internal/queue"
)

const (
	publishTimeout = 5 * time.Second
	backlogSize    = 256
)

type pending struct {
	queue string
	body  []byte
}

// Publisher owns one AMQP connection, dialled lazily and re-dialled after
// any failure.
type Publisher struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel

	backlog chan pending
	dropped atomic.Uint64
	send    func(ctx context.Context, queue string, body []byte) error
}

// NewPublisher returns a publisher for the broker at url.  Run must be
// started for reservation events to be delivered.
func NewPublisher(url string) *Publisher {
	p := &Publisher{url: url, backlog: make(chan pending, backlogSize)}
	p.send = p.publish
	return p
}

// Notify queues a ledger event for delivery.  When the backlog is full
// the event is dropped and counted.
func (p *Publisher) Notify(_ context.Context, ev ledger.Event) {
	body, err := json.Marshal(q.NewReservationEvent(ev.Kind, ev.Reservation, ev.At))
	if err != nil {
		log.Error().Str("component", "rabbitmq").Err(err).Msg("marshal reservation event")
		return
	}
	select {
	case p.backlog <- pending{queue: q.ReservationQueue, body: body}:
	default:
		p.dropped.Add(1)
		log.Warn().Str("component", "rabbitmq").Str("event", ev.Kind).Msg("publish backlog full, dropping event")
	}
}

// Run delivers queued events until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-p.backlog:
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			if err := p.send(pctx, m.queue, m.body); err != nil {
				log.Error().Str("component", "rabbitmq").Str("queue", m.queue).Err(err).Msg("publish failed")
			}
			cancel()
		}
	}
}

// SendVerificationCode publishes a code for the notification service to
// email.  It blocks until the broker has accepted the message.
func (p *Publisher) SendVerificationCode(ctx context.Context, email, code string, expires time.Time) error {
	body, err := json.Marshal(q.NewVerificationCodeEvent(email, code, expires))
	if err != nil {
		return fmt.Errorf("marshal verification event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.send(ctx, q.NotificationQueue, body)
}

// Dropped returns how many reservation events were discarded.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// Close shuts the connection down.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resetLocked()
}

func (p *Publisher) publish(ctx context.Context, queue string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channelLocked()
	if err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = p.resetLocked()
		return fmt.Errorf("queue declare: %w", err)
	}
	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		_ = p.resetLocked()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *Publisher) channelLocked() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	_ = p.resetLocked()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) resetLocked() error {
	var err error
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err = p.conn.Close()
		p.conn = nil
	}
	return err
}
