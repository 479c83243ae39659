package connector

import (
	"context"

	"github.com/ceyewan/idforge/metrics"
)

// MetricConnectAttempts 连接尝试计数
const MetricConnectAttempts = "connector_connect_attempts_total"

// connectRecorder 记录 Connect 的结果，kind 为连接器类型
type connectRecorder struct {
	kind    string
	name    string
	counter metrics.Counter
}

func newConnectRecorder(meter metrics.Meter, kind, name string) *connectRecorder {
	r := &connectRecorder{kind: kind, name: name}
	if c, err := meter.Counter(MetricConnectAttempts, "Number of connector connect attempts."); err == nil {
		r.counter = c
	}
	return r
}

func (r *connectRecorder) observe(ctx context.Context, err error) {
	if r.counter == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	r.counter.Inc(ctx,
		metrics.L("connector", r.kind),
		metrics.L("name", r.name),
		metrics.L(metrics.LabelOutcome, outcome),
	)
}
