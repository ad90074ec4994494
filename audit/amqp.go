package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sqlgate/sqlgate/logger"
)

const (
	publishTimeout = 5 * time.Second
	queueSize      = 1024
)

// Publisher is the slice of *amqp.Channel the recorder uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPRecorder publishes entries as JSON to an exchange from a background
// worker. Entries arriving while the queue is full are dropped and logged.
type AMQPRecorder struct {
	publisher Publisher
	exchange  string
	key       string
	logger    logger.Logger

	queue     chan Entry
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	closers   []func() error
}

// NewAMQPRecorder starts the publishing worker.
func NewAMQPRecorder(pub Publisher, exchange, key string, log logger.Logger) *AMQPRecorder {
	r := &AMQPRecorder{
		publisher: pub,
		exchange:  exchange,
		key:       key,
		logger:    log,
		queue:     make(chan Entry, queueSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go r.run()
	return r
}

// DialAMQP connects to url, declares a durable topic exchange and returns a
// recorder that owns the connection.
func DialAMQP(url, exchange, key string, log logger.Logger) (*AMQPRecorder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open audit channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare audit exchange %s: %w", exchange, err)
	}

	r := NewAMQPRecorder(ch, exchange, key, log)
	r.closers = []func() error{ch.Close, conn.Close}
	return r, nil
}

func (r *AMQPRecorder) Record(_ context.Context, e Entry) {
	select {
	case <-r.done:
		return
	default:
	}
	select {
	case r.queue <- e:
	default:
		r.logger.Warn().Str("pool", e.Target.String()).Msg("Audit queue full, dropping entry")
	}
}

func (r *AMQPRecorder) run() {
	defer close(r.stopped)
	for {
		select {
		case e := <-r.queue:
			r.publish(e)
		case <-r.done:
			for {
				select {
				case e := <-r.queue:
					r.publish(e)
				default:
					return
				}
			}
		}
	}
}

func (r *AMQPRecorder) publish(e Entry) {
	body, err := json.Marshal(e.ToRecord())
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to encode audit entry")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = r.publisher.PublishWithContext(ctx, r.exchange, r.key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.Time,
		Body:         body,
	})
	if err != nil {
		r.logger.Error().Err(err).Str("exchange", r.exchange).Msg("Failed to publish audit entry")
	}
}

// Close stops accepting entries, flushes the queue and releases the broker connection.
func (r *AMQPRecorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		<-r.stopped
		for _, c := range r.closers {
			if cerr := c(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}
