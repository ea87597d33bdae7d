// Package sinks publishes the summary of a finished workflow run to external
// observability backends.
package sinks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ilhicas/webex-partner-ops/internal/config"
)

// Summary describes one workflow run.
type Summary struct {
	RunID      string    `json:"runId"`
	Workflow   string    `json:"workflow"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Flagged    int       `json:"flagged"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// NewSummary starts the summary of a run with a fresh run ID.
func NewSummary(workflow string, startedAt time.Time) Summary {
	return Summary{RunID: uuid.NewString(), Workflow: workflow, StartedAt: startedAt}
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Sink receives run summaries.
type Sink interface {
	Name() string
	Publish(ctx context.Context, s Summary) error
}

// Factory builds a sink from the loaded configuration.
type Factory func(cfg *config.Config) (Sink, error)

var registry = make(map[string]Factory)

// RegisterSink registers a sink factory under name.
func RegisterSink(name string, factory Factory) {
	registry[strings.ToLower(name)] = factory
}

// GetSink builds the sink registered under name.
func GetSink(name string, cfg *config.Config) (Sink, error) {
	factory, exists := registry[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("sink not found: %s", name)
	}
	return factory(cfg)
}

// ListSinks returns the registered sink names in order.
func ListSinks() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PublishAll builds every named sink and publishes s to each. A sink that
// cannot be built or fails to publish does not stop the others; all problems
// are returned together.
func PublishAll(ctx context.Context, cfg *config.Config, names []string, s Summary, logger zerolog.Logger) error {
	var errs *multierror.Error
	for _, name := range names {
		sink, err := GetSink(name, cfg)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if err := sink.Publish(ctx, s); err != nil {
			logger.Warn().Err(err).Str("sink", sink.Name()).Msg("failed to publish run summary")
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			continue
		}
		logger.Debug().Str("sink", sink.Name()).Str("run_id", s.RunID).Msg("run summary published")
	}
	return errs.ErrorOrNil()
}

// LogSink writes the summary to the application log.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) Name() string { return "log" }

func (l *LogSink) Publish(_ context.Context, s Summary) error {
	l.logger.Info().
		Str("run_id", s.RunID).
		Str("workflow", s.Workflow).
		Int("succeeded", s.Succeeded).
		Int("failed", s.Failed).
		Int("flagged", s.Flagged).
		Dur("duration", s.Duration()).
		Msg("run summary")
	return nil
}

func init() {
	RegisterSink("log", func(*config.Config) (Sink, error) {
		return NewLogSink(log.Logger.With().Str("component", "sinks").Logger()), nil
	})
}
