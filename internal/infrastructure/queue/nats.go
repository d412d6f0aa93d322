package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/garyjia/travel-review/internal/application/port"
	"github.com/garyjia/travel-review/internal/domain/entity"
)

// DefaultSubject is where notices are published for the relay
const DefaultSubject = "travelreview.notices"

// Config holds NATS connection settings
type Config struct {
	URL     string
	Subject string
	Queue   string
	Name    string
}

// Publisher publishes raw messages. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Connect opens a NATS connection that keeps reconnecting
func Connect(cfg Config, logger *zap.Logger) (*nats.Conn, error) {
	name := cfg.Name
	if name == "" {
		name = "travelreview"
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// NATSQueue defers notices to the relay over a NATS subject
type NATSQueue struct {
	pub     Publisher
	subject string
	logger  *zap.Logger
}

var _ port.NoticeQueue = (*NATSQueue)(nil)

// NewNATSQueue creates a notice queue publishing on subject
func NewNATSQueue(pub Publisher, subject string, logger *zap.Logger) *NATSQueue {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSQueue{
		pub:     pub,
		subject: subject,
		logger:  logger,
	}
}

// Subject returns the subject notices are published on
func (q *NATSQueue) Subject() string {
	return q.subject
}

// Enqueue publishes the notice as JSON
func (q *NATSQueue) Enqueue(ctx context.Context, notice entity.Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	if err := q.pub.Publish(q.subject, data); err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}

	q.logger.Debug("Notice enqueued",
		zap.String("subject", q.subject),
		zap.String("kind", notice.Kind.String()))
	return nil
}

// DecodeNotice parses a queued notice. Payload numbers keep their Go types:
// identifiers come back as int64 and every other number as float64.
func DecodeNotice(data []byte) (entity.Notice, error) {
	var notice entity.Notice
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&notice); err != nil {
		return entity.Notice{}, fmt.Errorf("decode notice: %w", err)
	}
	if notice.Kind == "" {
		return entity.Notice{}, fmt.Errorf("decode notice: missing kind")
	}
	for k, v := range notice.Payload {
		notice.Payload[k] = payloadValue(k, v)
	}
	return notice, nil
}

func payloadValue(key string, v interface{}) interface{} {
	num, ok := v.(json.Number)
	if !ok {
		return v
	}
	if strings.HasSuffix(key, "_id") {
		if id, err := num.Int64(); err == nil {
			return id
		}
	}
	if f, err := num.Float64(); err == nil {
		return f
	}
	return num.String()
}
