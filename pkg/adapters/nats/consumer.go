// Package nats consumes the transaction stream a Nuts node publishes on NATS JetStream.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nuts-foundation/nuts-monitor/internal/logging"
	"github.com/nuts-foundation/nuts-monitor/pkg/data"
	"github.com/nuts-foundation/nuts-monitor/pkg/domain"
)

const (
	// StreamName is the stream the consumer binds to, created when missing.
	StreamName = "nuts-monitor"
	// Subject receives every transaction the node publishes.
	Subject = "TRANSACTIONS.*"
	// maxMsgs is the stream's buffer; older messages are discarded.
	maxMsgs = 1000
)

// DefaultRetryInterval is the wait between connection attempts.
const DefaultRetryInterval = 10 * time.Second

// Sink receives parsed transactions.
type Sink interface {
	Add(ctx context.Context, transaction domain.Transaction)
}

// TransactionEvent is the message published for each transaction.
type TransactionEvent struct {
	// Transaction is in compact JWS format.
	Transaction string `json:"transaction"`
	// Payload is base64 encoded.
	Payload string `json:"payload"`
}

// Consumer subscribes to the node's transaction stream and feeds a Sink.
type Consumer struct {
	url           string
	sink          Sink
	logger        *slog.Logger
	retryInterval time.Duration

	conn *nats.Conn
	sub  *nats.Subscription
}

// Option configures the Consumer.
type Option func(*Consumer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithRetryInterval sets the wait between connection attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Consumer) {
		c.retryInterval = d
	}
}

// NewConsumer creates a consumer for the NATS server at url.
func NewConsumer(url string, sink Sink, opts ...Option) *Consumer {
	c := &Consumer{
		url:           url,
		sink:          sink,
		logger:        logging.NewNop(),
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run subscribes, retrying until it succeeds or ctx is done, then holds the subscription until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.subscribe(ctx)
		if err == nil {
			break
		}
		c.logger.Error("Failed to start NATS consumer", "error", err, "retry_in", c.retryInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryInterval):
		}
	}

	c.logger.Info("NATS consumer started", "stream", StreamName, "subject", Subject)
	<-ctx.Done()
	c.close()
	return nil
}

func (c *Consumer) subscribe(ctx context.Context) error {
	conn, err := nats.Connect(c.url, nats.Name("nuts-monitor"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS stream: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to JetStream: %w", err)
	}

	if _, err := js.StreamInfo(StreamName); errors.Is(err, nats.ErrStreamNotFound) {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      StreamName,
			Subjects:  []string{Subject},
			MaxMsgs:   maxMsgs,
			Retention: nats.LimitsPolicy,
			Storage:   nats.MemoryStorage,
			Discard:   nats.DiscardOld,
		})
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to create stream: %w", err)
		}
	} else if err != nil {
		conn.Close()
		return err
	}

	sub, err := js.Subscribe(Subject, func(msg *nats.Msg) {
		c.Handle(ctx, msg.Data)
	}, nats.BindStream(StreamName), nats.DeliverNew(), nats.Context(ctx))
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to stream: %w", err)
	}

	c.conn, c.sub = conn, sub
	return nil
}

// Handle parses one stream message and adds the transaction to the sink.
// Malformed messages are logged and dropped.
func (c *Consumer) Handle(ctx context.Context, msg []byte) {
	var event TransactionEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		c.logger.Error("Failed to parse transaction event", "error", err)
		return
	}
	transaction, err := data.FromJWS(event.Transaction)
	if err != nil {
		c.logger.Error("Failed to parse transaction", "error", err)
		return
	}
	c.sink.Add(ctx, *transaction)
}

func (c *Consumer) close() {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
