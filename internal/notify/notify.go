package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/zsprackett/usagebar/internal/usage"
)

// Config holds notification settings.
type Config struct {
	Enabled bool   `json:"enabled"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

// Notifier fires system notifications and optional webhook POSTs.
type Notifier struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New returns a Notifier with the given config.
func New(cfg Config, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// Notify announces that usage has crossed the alert threshold.
func (n *Notifier) Notify(s usage.Snapshot) {
	if !n.cfg.Enabled {
		return
	}

	msg := Message(s)
	n.sendSystemNotification(msg)

	if n.cfg.Webhook != "" {
		n.sendWebhook(s)
	}
	if n.cfg.NtfyURL != "" {
		n.sendNtfy(s, msg)
	}
}

// Message is the one-line text used for every channel.
func Message(s usage.Snapshot) string {
	return fmt.Sprintf("Claude usage high: session %.0f%%, weekly %.0f%%",
		s.SessionFraction*100, s.WeeklyFraction*100)
}

func (n *Notifier) sendSystemNotification(msg string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title "usagebar"`, msg)
		cmd = exec.Command("osascript", "-e", script)
	default:
		cmd = exec.Command("notify-send", "usagebar", msg)
	}
	if err := cmd.Run(); err != nil {
		n.logger.Debug("notify: system notification failed", "err", err)
	}
}

type webhookPayload struct {
	Event           string  `json:"event"`
	SessionFraction float64 `json:"session_fraction"`
	WeeklyFraction  float64 `json:"weekly_fraction"`
	CapturedAt      string  `json:"captured_at"`
	Timestamp       string  `json:"timestamp"`
}

func (n *Notifier) sendWebhook(s usage.Snapshot) {
	payload := webhookPayload{
		Event:           "usage_alert",
		SessionFraction: s.SessionFraction,
		WeeklyFraction:  s.WeeklyFraction,
		CapturedAt:      s.CapturedAt.UTC().Format(time.RFC3339),
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	n.post("webhook", n.cfg.Webhook, payload)
}

type ntfyPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) sendNtfy(s usage.Snapshot, msg string) {
	payload := ntfyPayload{
		Title:    "Claude usage above threshold",
		Message:  msg,
		Priority: 4,
		Tags:     []string{"warning"},
	}
	n.post("ntfy", n.cfg.NtfyURL, payload)
}

func (n *Notifier) post(channel, url string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("notify: post failed", "channel", channel, "err", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.Warn("notify: unexpected status", "channel", channel, "status", resp.StatusCode)
	}
}
