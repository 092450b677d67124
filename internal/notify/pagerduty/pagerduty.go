// Package pagerduty fires PagerDuty Events API v2 alerts for SLA
// breaches, grounded on tenderduty's notifyPagerduty: a fixed routing
// key and a dedup key derived from the alert's own identity so PagerDuty
// merges duplicate deliveries into one incident rather than paging
// twice.
package pagerduty

import (
	"context"
	"fmt"
	"time"

	"github.com/PagerDuty/go-pagerduty"

	"github.com/chatsla/sentinel/internal/notify"
)

const sendTimeout = 30 * time.Second

// Notifier dispatches breach alerts to a single PagerDuty service via
// its routing key.
type Notifier struct {
	RoutingKey string
}

func New(routingKey string) *Notifier {
	return &Notifier{RoutingKey: routingKey}
}

var _ notify.OpsNotifier = (*Notifier)(nil)

func (n *Notifier) Notify(ctx context.Context, alert notify.AlertMessage, summary string) error {
	if n.RoutingKey == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	action := "trigger"
	severity := severityFor(alert.Level)
	_, err := pagerduty.ManageEventWithContext(ctx, pagerduty.V2Event{
		RoutingKey: n.RoutingKey,
		Action:     action,
		DedupKey:   dedupKey(alert),
		Payload: &pagerduty.V2Payload{
			Summary:  summary,
			Source:   fmt.Sprintf("sentinel:chat:%d", alert.ChatID),
			Severity: severity,
		},
	})
	if err != nil {
		return fmt.Errorf("pagerduty: manage event: %w", err)
	}
	return nil
}

// dedupKey ties repeated escalations for the same request+level to one
// PagerDuty incident, and a later resolve to the matching trigger.
func dedupKey(alert notify.AlertMessage) string {
	return fmt.Sprintf("sentinel-%s-l%d", alert.RequestID, alert.Level)
}

// severityFor maps escalation level to PagerDuty's four-value
// severity scale, escalating with each re-fire.
func severityFor(level int) string {
	switch {
	case level <= 1:
		return "warning"
	case level == 2:
		return "error"
	default:
		return "critical"
	}
}

// Resolve closes the PagerDuty incident opened for the given request
// and level, used when a Request is answered after having already
// paged.
func (n *Notifier) Resolve(ctx context.Context, alert notify.AlertMessage) error {
	if n.RoutingKey == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := pagerduty.ManageEventWithContext(ctx, pagerduty.V2Event{
		RoutingKey: n.RoutingKey,
		Action:     "resolve",
		DedupKey:   dedupKey(alert),
	})
	if err != nil {
		return fmt.Errorf("pagerduty: resolve event: %w", err)
	}
	return nil
}
