// Package notify publishes build reports to NATS so downstream consumers
// (dashboards, link verifiers) can react to finished runs.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/docpress/internal/config"
	"git.home.luguber.info/inful/docpress/internal/logfields"
	"git.home.luguber.info/inful/docpress/internal/report"
)

// Publisher publishes build reports to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// NewPublisher connects to the configured NATS server.
func NewPublisher(cfg *config.NotifyConfig) (*Publisher, error) {
	if cfg == nil || cfg.NATSURL == "" {
		return nil, fmt.Errorf("notifications are not configured")
	}

	conn, err := nats.Connect(cfg.NATSURL, nats.Name("docpress"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.Debug("NATS publisher connected", logfields.URL(cfg.NATSURL), slog.String("subject", cfg.Subject))
	return &Publisher{conn: conn, subject: cfg.Subject}, nil
}

// Publish sends the build report as JSON and flushes before returning.
func (p *Publisher) Publish(build *report.Build) error {
	payload, err := json.Marshal(build)
	if err != nil {
		return fmt.Errorf("failed to marshal build report: %w", err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("failed to publish build report: %w", err)
	}
	if err := p.conn.Flush(); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	slog.Info("Published build report", logfields.BuildID(build.ID), slog.String("subject", p.subject))
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
