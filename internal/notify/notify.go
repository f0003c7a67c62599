// Package notify delivers run reports. The runner hands over the
// finished run; delivery goes to a log line or to a mail gateway,
// depending on what the deployment configures.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/NaN-tic/csvimport/internal/core"
)

// Notifier sends one report to one recipient.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogNotifier writes reports to the log. It is the default when no
// gateway is configured, so notification requests never vanish silently.
type LogNotifier struct {
	Log *slog.Logger
}

func (n *LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	log := n.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("run report", "to", to, "subject", subject)
	log.Debug("run report body", "body", body)
	return nil
}

// GatewayNotifier posts reports as JSON to a mail gateway.
type GatewayNotifier struct {
	http *resty.Client
	url  string
	from string
}

func NewGateway(url, from string, timeout time.Duration) *GatewayNotifier {
	return &GatewayNotifier{
		http: resty.New().SetTimeout(timeout),
		url:  url,
		from: from,
	}
}

func (n *GatewayNotifier) Send(ctx context.Context, to, subject, body string) error {
	payload := map[string]string{
		"from":    n.from,
		"to":      to,
		"subject": subject,
		"body":    body,
	}
	r, err := n.http.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	if r.IsError() {
		return fmt.Errorf("notification gateway: %s; body: %s", r.Status(), r.String())
	}
	return nil
}

// RunReporter adapts a Notifier to the runner: it renders the run as a
// report and sends it to the configured recipient.
type RunReporter struct {
	Notifier Notifier
	To       string
}

func (r *RunReporter) NotifyRun(ctx context.Context, profile *core.Profile, run *core.Run) error {
	subject := fmt.Sprintf("Import report: %s, file %s, %s", profile.Name, run.Filename, run.State)
	return r.Notifier.Send(ctx, r.To, subject, run.Report())
}
