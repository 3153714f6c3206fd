// Package notify posts run reports to an operator webhook, typically a chat
// integration. Notification failures never affect the run that produced the
// report.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/KnightedIT/freshservice-dashboard/internal/config"
	"github.com/KnightedIT/freshservice-dashboard/internal/pipeline"
)

// Notifier delivers run reports to the configured webhook. A Notifier with
// no URL is valid and silently drops every report.
type Notifier struct {
	url    string
	client *resty.Client
	logger *log.Logger
}

// New creates a notifier for the configured webhook URL.
func New(cfg *config.NotifyConfig) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "fsdash-notify")

	return &Notifier{
		url:    cfg.WebhookURL,
		client: client,
		logger: log.New(log.Writer(), "[NOTIFY] ", log.LstdFlags),
	}
}

// SetLogger replaces the notifier's logger.
func (n *Notifier) SetLogger(logger *log.Logger) {
	if logger != nil {
		n.logger = logger
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// Send posts the report as JSON. Disabled notifiers return nil immediately.
func (n *Notifier) Send(ctx context.Context, report *pipeline.RunReport) error {
	if !n.Enabled() || report == nil {
		return nil
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(report).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook post: status %d", resp.StatusCode())
	}

	n.logger.Printf("Run %s reported to webhook (%s)", report.RunID, report.Status)
	return nil
}
