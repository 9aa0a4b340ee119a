package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/specblocks/internal/config"
	"git.home.luguber.info/inful/specblocks/internal/logfields"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 5 * time.Second
)

// NATSPublisher publishes BuildCompleted events to a JetStream subject.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewNATSPublisher connects to cfg.NATSURL and makes sure a stream captures
// cfg.Subject.
func NewNATSPublisher(ctx context.Context, cfg config.NotifyConfig) (*NATSPublisher, error) {
	if cfg.NATSURL == "" {
		return nil, fmt.Errorf("notify: nats_url is required")
	}

	conn, err := nats.Connect(cfg.NATSURL, nats.Name("specblocks"), nats.Timeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(sctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "specblocks build events",
		Subjects:    []string{cfg.Subject},
		MaxMsgs:     1000,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.Stream, err)
	}

	slog.Info("NATS publisher initialized",
		"url", cfg.NATSURL,
		"subject", cfg.Subject,
		"stream", cfg.Stream)

	return &NATSPublisher{conn: conn, js: js, subject: cfg.Subject}, nil
}

// Publish sends ev; the build ID is the message ID so redelivery is deduplicated.
func (p *NATSPublisher) Publish(ctx context.Context, ev BuildCompleted) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := p.js.Publish(pctx, p.subject, data, jetstream.WithMsgID(ev.BuildID)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Debug("Published build event", logfields.BuildID(ev.BuildID), "subject", p.subject)
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
