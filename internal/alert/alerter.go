package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Type categorizes an alert.
type Type string

const (
	// TypeBounced is raised when a submitted withdrawal came back to the wallet.
	TypeBounced Type = "BOUNCED"
	// TypeConfig is raised when a request cannot be processed with the current configuration.
	TypeConfig Type = "CONFIG"
)

// Alert is a single operator-actionable event.
type Alert struct {
	Type Type
	// Key identifies the subject, alerts with equal Type and Key share a cooldown.
	Key     string
	Title   string
	Message string
	Fields  map[string]string
}

// Alerter delivers alerts to one channel.
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// MultiAlerter fans alerts out to several channels and suppresses repeats of
// the same alert within the cooldown. The cooldown is tracked per channel and
// only starts once that channel delivered, so a failed channel is retried on
// the next Send.
type MultiAlerter struct {
	alerters []Alerter
	cooldown time.Duration
	clock    time2.Clock

	mu       sync.Mutex
	lastSent map[sentKey]time.Time
}

type sentKey struct {
	alert   string
	channel int
}

func NewMultiAlerter(cooldown time.Duration, clock time2.Clock, alerters ...Alerter) *MultiAlerter {
	if clock == nil {
		clock = time2.DefaultClock
	}

	return &MultiAlerter{
		alerters: alerters,
		cooldown: cooldown,
		clock:    clock,
		lastSent: make(map[sentKey]time.Time),
	}
}

func cooldownKey(a Alert) string {
	return string(a.Type) + ":" + a.Key
}

func (m *MultiAlerter) Send(ctx context.Context, alert Alert) error {
	key := cooldownKey(alert)

	var firstErr error
	for i, a := range m.alerters {
		k := sentKey{alert: key, channel: i}
		if m.suppressed(k) {
			log.Debug().Str("key", key).Int("channel", i).Msg("Alert suppressed by cooldown")
			continue
		}

		if err := a.Send(ctx, alert); err != nil {
			log.Warn().Err(err).Str("type", string(alert.Type)).Int("channel", i).Msg("Failed to send alert")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		m.mu.Lock()
		m.lastSent[k] = m.clock.Now()
		m.mu.Unlock()
	}

	return firstErr
}

func (m *MultiAlerter) suppressed(k sentKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.lastSent[k]
	return ok && m.clock.Now().Sub(last) < m.cooldown
}

// LogAlerter writes alerts to the zerolog logger at error level.
type LogAlerter struct {
	logger zerolog.Logger
}

func NewLogAlerter(logger zerolog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger.With().Str("component", "alert").Logger()}
}

func (l *LogAlerter) Send(_ context.Context, alert Alert) error {
	event := l.logger.Error().
		Str("alert_type", string(alert.Type)).
		Str("key", alert.Key).
		Str("title", alert.Title)
	for k, v := range alert.Fields {
		event = event.Str(k, v)
	}
	event.Msg(alert.Message)

	return nil
}

// WebhookAlerter posts alerts as JSON to an HTTP endpoint.
type WebhookAlerter struct {
	url    string
	client *http.Client
	clock  time2.Clock
}

func NewWebhookAlerter(url string, clock time2.Clock) *WebhookAlerter {
	if clock == nil {
		clock = time2.DefaultClock
	}

	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		clock:  clock,
	}
}

type webhookPayload struct {
	Type    string            `json:"type"`
	Key     string            `json:"key"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Time    string            `json:"time"`
}

func (w *WebhookAlerter) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(webhookPayload{
		Type:    string(alert.Type),
		Key:     alert.Key,
		Title:   alert.Title,
		Message: alert.Message,
		Fields:  alert.Fields,
		Time:    w.clock.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send webhook alert")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// NoopAlerter drops every alert.
type NoopAlerter struct{}

func (NoopAlerter) Send(_ context.Context, _ Alert) error { return nil }
