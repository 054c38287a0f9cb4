// Package events publishes storefront notifications such as confirmed carts and ended sessions.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"storefront/internal/logging"
)

const (
	SubjectCartConfirmed      = "storefront.cart.confirmed"
	SubjectCartRejected       = "storefront.cart.rejected"
	SubjectSessionInvalidated = "storefront.session.invalidated"
)

// Publisher delivers payload, encoded as JSON, on subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// NATSPublisher publishes on a NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// ConnectNATS dials url and returns a publisher that owns the connection.
func ConnectNATS(url string, logger *zap.Logger) (*NATSPublisher, error) {
	logger = logging.OrNop(logger)
	conn, err := nats.Connect(url,
		nats.Name("storefront"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSPublisher(conn, logger), nil
}

func NewNATSPublisher(conn *nats.Conn, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, logger: logging.OrNop(logger)}
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// LogPublisher writes events to the log. It is used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logging.OrNop(logger)}
}

func (p *LogPublisher) Publish(_ context.Context, subject string, payload any) error {
	p.logger.Info("event", zap.String("subject", subject), zap.Any("payload", payload))
	return nil
}

// Message is one recorded publication.
type Message struct {
	Subject string
	Payload any
}

// Recorder keeps published events in memory for inspection.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Publish(_ context.Context, subject string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Subject: subject, Payload: payload})
	return nil
}

// Messages returns a copy of everything published so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Subjects lists the subjects published so far, in order.
func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m.Subject)
	}
	return out
}

// CartEvent is the payload of cart confirmations and rejections.
type CartEvent struct {
	CartID        string `json:"cartId"`
	Action        string `json:"action"`
	MerchandiseID string `json:"merchandiseId,omitempty"`
	TotalQuantity int    `json:"totalQuantity"`
	Error         string `json:"error,omitempty"`
}

// SessionEvent is the payload of session invalidations.
type SessionEvent struct {
	UserID int    `json:"userId"`
	Reason string `json:"reason"`
}
