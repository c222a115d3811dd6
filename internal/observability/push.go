package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// PushJob is the Pushgateway job name for run metrics.
const PushJob = "vaccination_etl"

// Push sends the run's metrics to a Pushgateway, replacing the previous run's group.
func Push(ctx context.Context, url, runID string, m *Metrics) error {
	p := push.New(url, PushJob).Grouping("instance", "batch")
	for _, c := range m.Collectors() {
		p = p.Collector(c)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics for run %s: %w", runID, err)
	}
	return nil
}
