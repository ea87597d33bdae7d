package newrelic

import (
	"github.com/ilhicas/webex-partner-ops/internal/config"
	"github.com/ilhicas/webex-partner-ops/internal/sinks"
)

func init() {
	// Register New Relic sink factory
	sinks.RegisterSink("newrelic", func(cfg *config.Config) (sinks.Sink, error) {
		return NewSink(cfg.NewRelic)
	})
}
