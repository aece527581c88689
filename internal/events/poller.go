// Package events consumes order events so carts checked out elsewhere are not
// shown stale.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const retryDelay = time.Second

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Mirror drops a session's locally mirrored cart.
type Mirror interface {
	Forget(ctx context.Context, sid session.ID) error
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

type orderEvent struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type Poller struct {
	reader MessageReader
	mirror Mirror
	log    *zap.Logger
}

func NewPoller(cfg Config, mirror Mirror, log *zap.Logger) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return newPoller(reader, mirror, log)
}

func newPoller(reader MessageReader, mirror Mirror, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{reader: reader, mirror: mirror, log: log}
}

// Run consumes until ctx is done or the reader is closed.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			p.log.Warn("error reading order event", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}
		p.handle(ctx, m)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("error closing order events reader", zap.Error(err))
	}
}

func (p *Poller) handle(ctx context.Context, m kafka.Message) {
	var ev orderEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.log.Warn("error parsing order event", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}
	raw := ev.SessionID
	if raw == "" {
		raw = ev.UserID
	}
	sid, err := session.Parse(raw)
	if err != nil {
		p.log.Warn("order event without valid session id", zap.Int64("offset", m.Offset), zap.String("value", raw))
		return
	}

	if err := p.mirror.Forget(ctx, sid); err != nil {
		p.log.Error("failed to drop cart mirror", zap.String("session_id", sid.String()), zap.Error(err))
		return
	}
	p.log.Debug("cart mirror dropped after order event", zap.String("session_id", sid.String()))
}
