package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dreschagin/quickset-dashboard/internal/application/port"
	"github.com/dreschagin/quickset-dashboard/pkg/logger"
)

// VerdictPublisher публикует финальные вердикты в NATS JetStream
type VerdictPublisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	logger  *logger.Logger
}

var _ port.EventPublisher = (*VerdictPublisher)(nil)

// NewVerdictPublisher подключается к NATS с переподключением
func NewVerdictPublisher(natsURL, subject string, log *logger.Logger) (*VerdictPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("quickset-dashboard"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	log.Info("Connected to NATS", "url", natsURL, "subject", subject)

	return &VerdictPublisher{
		nc:      nc,
		js:      js,
		subject: subject,
		logger:  log,
	}, nil
}

// PublishVerdictFinalized отправляет событие асинхронно.
// EventID уходит в Nats-Msg-Id, JetStream отбрасывает повторы.
func (p *VerdictPublisher) PublishVerdictFinalized(ctx context.Context, event port.VerdictFinalizedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.EventID)
	msg.Header.Set("Session-Id", event.SessionID)

	if _, err := p.js.PublishMsgAsync(msg); err != nil {
		p.logger.Error("Failed to publish verdict event", err,
			"subject", p.subject,
			"session_id", event.SessionID,
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Verdict event published",
		"subject", p.subject,
		"session_id", event.SessionID,
		"size", len(data),
	)

	return nil
}

// Close дожидается отправки асинхронных публикаций и закрывает соединение
func (p *VerdictPublisher) Close() error {
	if p.nc == nil {
		return nil
	}

	p.logger.Info("Closing NATS connection")
	select {
	case <-p.js.PublishAsyncComplete():
	case <-time.After(5 * time.Second):
		p.logger.Warn("NATS async publishes still pending on close", "pending", p.js.PublishAsyncPending())
	}
	p.nc.Close()
	return nil
}
