// Package notify sends webhook notifications when coverage changes between snapshots.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/pdbwatch/internal/config"
	"github.com/ppiankov/pdbwatch/internal/drift"
	"github.com/ppiankov/pdbwatch/internal/store"
)

const httpTimeout = 10 * time.Second

// eventAuditDegraded is synthesized here when PDB listing starts failing;
// drift.Detect never emits it.
const eventAuditDegraded = "AUDIT_DEGRADED"

// Notifier sends alerts for coverage events that cross severity thresholds.
type Notifier struct {
	severities map[store.Severity]bool
	sent       map[string]time.Time
	client     *http.Client
	webhooks   []config.WebhookConfig
	cooldown   time.Duration
	mu         sync.Mutex
}

// New creates a Notifier from notification config. Returns nil if not enabled or no webhooks.
func New(cfg config.NotificationConfig) *Notifier {
	if !cfg.Enabled || len(cfg.Webhooks) == 0 {
		return nil
	}

	sevs := make(map[store.Severity]bool)
	for _, s := range cfg.Severities {
		sevs[store.Severity(s)] = true
	}
	// Default to critical+warn if none specified
	if len(sevs) == 0 {
		sevs[store.SeverityCritical] = true
		sevs[store.SeverityWarn] = true
	}

	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = time.Hour
	}

	return &Notifier{
		webhooks:   cfg.Webhooks,
		severities: sevs,
		cooldown:   cooldown,
		sent:       make(map[string]time.Time),
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// eventKey returns a deduplication key for an event.
func eventKey(ev *drift.Event) string {
	return fmt.Sprintf("%s/%s/%s/%s", ev.Type, ev.Workload.Kind, ev.Workload.Namespace, ev.Workload.Name)
}

// Notify compares prev and curr snapshots and sends notifications for coverage changes.
func (n *Notifier) Notify(prev, curr store.Snapshot) {
	events := drift.Detect(prev, curr)

	if curr.PolicyListingFailed() && !prev.PolicyListingFailed() {
		events = append(events, drift.Event{
			Type:     eventAuditDegraded,
			Severity: store.SeverityCritical,
			Note:     fmt.Sprintf("listing poddisruptionbudgets failed: %s", curr.Warnings[store.SourcePolicies]),
		})
	}

	now := time.Now()
	var alerts []drift.Event

	n.mu.Lock()
	for i := range events {
		ev := &events[i]
		if !n.severities[ev.Severity] {
			continue
		}

		key := eventKey(ev)
		if lastSent, ok := n.sent[key]; ok && now.Sub(lastSent) < n.cooldown {
			continue
		}

		alerts = append(alerts, *ev)
		n.sent[key] = now
	}
	n.mu.Unlock()

	if len(alerts) == 0 {
		return
	}

	n.dispatch(alerts)
}

// dispatch sends events to all configured webhooks.
func (n *Notifier) dispatch(events []drift.Event) {
	for _, wh := range n.webhooks {
		switch wh.Type {
		case "slack":
			n.sendSlack(wh.URL, events)
		default:
			n.sendGeneric(wh.URL, events)
		}
	}
}

// GenericPayload is the JSON body sent to generic webhooks.
type GenericPayload struct {
	Timestamp time.Time      `json:"timestamp"`
	Summary   string         `json:"summary"`
	Events    []GenericEvent `json:"events"`
}

// GenericEvent is a single coverage event in the generic webhook payload.
type GenericEvent struct {
	Type      string             `json:"type"`
	Severity  store.Severity     `json:"severity"`
	Namespace string             `json:"namespace"`
	Name      string             `json:"name"`
	Kind      store.WorkloadKind `json:"kind"`
	Note      string             `json:"note"`
}

func (n *Notifier) sendGeneric(webhookURL string, events []drift.Event) {
	payload := GenericPayload{
		Timestamp: time.Now().UTC(),
		Summary:   buildSummary(events),
		Events:    make([]GenericEvent, len(events)),
	}
	for i := range events {
		payload.Events[i] = GenericEvent{
			Type:      events[i].Type,
			Severity:  events[i].Severity,
			Namespace: events[i].Workload.Namespace,
			Name:      events[i].Workload.Name,
			Kind:      events[i].Workload.Kind,
			Note:      events[i].Note,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("notification: marshal error", "err", err)
		return
	}

	n.post(webhookURL, "application/json", body)
}

// SlackPayload is the JSON body sent to Slack incoming webhooks.
type SlackPayload struct {
	Blocks []SlackBlock `json:"blocks"`
}

// SlackBlock is a Slack Block Kit block.
type SlackBlock struct {
	Text *SlackText `json:"text,omitempty"`
	Type string     `json:"type"`
}

// SlackText is a Slack text element.
type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (n *Notifier) sendSlack(webhookURL string, events []drift.Event) {
	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: fmt.Sprintf("pdbwatch: %d coverage event(s)", len(events)),
			},
		},
	}

	for i := range events {
		sevLabel := strings.ToUpper(string(events[i].Severity))
		var text string
		if events[i].Workload.Name == "" {
			text = fmt.Sprintf("[%s] %s: %s", sevLabel, events[i].Type, events[i].Note)
		} else {
			text = fmt.Sprintf("[%s] %s *%s* in `%s`: %s",
				sevLabel, events[i].Workload.Kind, events[i].Workload.Name,
				events[i].Workload.Namespace, events[i].Note)
		}

		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{Type: "mrkdwn", Text: text},
		})
	}

	blocks = append(blocks, SlackBlock{
		Type: "context",
		Text: &SlackText{
			Type: "mrkdwn",
			Text: fmt.Sprintf("Source: pdbwatch | %s", time.Now().UTC().Format(time.RFC3339)),
		},
	})

	payload := SlackPayload{Blocks: blocks}
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("notification: slack marshal error", "err", err)
		return
	}

	n.post(webhookURL, "application/json", body)
}

func (n *Notifier) post(webhookURL, contentType string, body []byte) {
	resp, err := n.client.Post(webhookURL, contentType, bytes.NewReader(body)) //nolint:noctx // fire-and-forget notification
	if err != nil {
		slog.Warn("notification: webhook delivery failed", "url", webhookURL, "err", err)
		return
	}
	defer resp.Body.Close() //nolint:errcheck // read-only close
	if resp.StatusCode >= 300 {
		slog.Warn("notification: webhook returned non-2xx", "url", webhookURL, "status", resp.StatusCode)
	}
}

func buildSummary(events []drift.Event) string {
	var critCount, warnCount int
	for i := range events {
		switch events[i].Severity {
		case store.SeverityCritical:
			critCount++
		case store.SeverityWarn:
			warnCount++
		}
	}
	var parts []string
	if critCount > 0 {
		parts = append(parts, fmt.Sprintf("%d critical", critCount))
	}
	if warnCount > 0 {
		parts = append(parts, fmt.Sprintf("%d warn", warnCount))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d event(s)", len(events))
	}
	return strings.Join(parts, ", ") + " event(s)"
}
