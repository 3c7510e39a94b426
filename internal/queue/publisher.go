package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/highway-inspection/internal/service"
)

const (
	dialTimeout = 2 * time.Second
	// redialAfter is how long a failed dial is remembered. Publishes in
	// that window fail fast instead of waiting on the broker again.
	redialAfter = 15 * time.Second
)

var errBrokerDown = errors.New("broker unreachable")

// Publisher sends workflow events to a durable queue on the default
// exchange. The connection is opened lazily and re-opened after the broker
// drops it. It implements service.Publisher.
type Publisher struct {
	url   string
	queue string
	log   *zap.Logger
	dial  func(url string) (*amqp.Connection, error)
	now   func() time.Time

	mu        sync.Mutex
	conn      *amqp.Connection
	ch        *amqp.Channel
	downUntil time.Time
}

// NewPublisher returns a publisher for queue on the broker at url.
func NewPublisher(url, queue string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, queue: queue, log: log, dial: dialBroker, now: time.Now}
}

func dialBroker(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
}

func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.now().Before(p.downUntil) {
			return nil, errBrokerDown
		}
		conn, err := p.dial(p.url)
		if err != nil {
			p.downUntil = p.now().Add(redialAfter)
			return nil, fmt.Errorf("dial broker: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare %s: %w", p.queue, err)
	}
	p.ch = ch
	return ch, nil
}

func publishing(ev service.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(newFlightEvent(ev))
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}

// Publish sends ev as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, ev service.Event) error {
	msg, err := publishing(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		_ = ch.Close()
		p.ch = nil
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	p.log.Debug("event published", zap.String("type", ev.Type), zap.String("message_id", msg.MessageId))
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
