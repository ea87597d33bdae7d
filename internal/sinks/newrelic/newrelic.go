package newrelic

import (
	"context"
	"fmt"
	"time"

	"github.com/newrelic/newrelic-client-go/newrelic"

	"github.com/ilhicas/webex-partner-ops/internal/config"
	"github.com/ilhicas/webex-partner-ops/internal/sinks"
)

// EventType is the custom event type recorded for every run.
const EventType = "WebexPartnerOpsRun"

type eventCreator interface {
	CreateEvent(accountID int, event interface{}) error
}

// NewRelicSink records run summaries as New Relic custom events
type NewRelicSink struct {
	events    eventCreator
	accountID int
}

// NewSink creates a New Relic sink
func NewSink(cfg config.NewRelicConfig) (*NewRelicSink, error) {
	if cfg.AccountID == 0 {
		return nil, fmt.Errorf("newrelic.account_id is not configured (set NEW_RELIC_ACCOUNT_ID)")
	}
	if cfg.InsertKey == "" {
		return nil, fmt.Errorf("newrelic.insert_key is not configured (set NEW_RELIC_INSERT_KEY)")
	}

	opts := []newrelic.ConfigOption{newrelic.ConfigInsightsInsertKey(cfg.InsertKey)}
	if cfg.APIKey != "" {
		opts = append(opts, newrelic.ConfigPersonalAPIKey(cfg.APIKey))
	}

	client, err := newrelic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating New Relic client: %w", err)
	}

	return &NewRelicSink{events: &client.Events, accountID: cfg.AccountID}, nil
}

// Name returns the sink name
func (nr *NewRelicSink) Name() string {
	return "newrelic"
}

// Publish records one event per run
func (nr *NewRelicSink) Publish(_ context.Context, s sinks.Summary) error {
	event := map[string]interface{}{
		"eventType":       EventType,
		"runId":           s.RunID,
		"workflow":        s.Workflow,
		"succeeded":       s.Succeeded,
		"failed":          s.Failed,
		"flagged":         s.Flagged,
		"durationSeconds": s.Duration().Seconds(),
		"timestamp":       s.FinishedAt.Unix(),
		"startedAt":       s.StartedAt.Format(time.RFC3339),
	}
	if err := nr.events.CreateEvent(nr.accountID, event); err != nil {
		return fmt.Errorf("error creating New Relic event: %w", err)
	}
	return nil
}
