package idgen

import (
	"context"
	"strconv"

	"github.com/ceyewan/idforge/metrics"
	"github.com/ceyewan/idforge/xerrors"
)

// 指标名
const (
	MetricIDsGenerated      = "idgen_ids_generated_total"
	MetricClockRegressions  = "idgen_clock_regressions_total"
	MetricSequenceExhausted = "idgen_sequence_exhausted_total"
)

type instruments struct {
	generated   metrics.Counter
	regressions metrics.Counter
	exhausted   metrics.Counter
	labels      []metrics.Label
}

func newInstruments(meter metrics.Meter, workerID int64) (*instruments, error) {
	generated, err := meter.Counter(MetricIDsGenerated, "Number of snowflake ids generated.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create generated counter")
	}
	regressions, err := meter.Counter(MetricClockRegressions, "Number of NextID calls rejected because the clock moved backwards.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create clock regression counter")
	}
	exhausted, err := meter.Counter(MetricSequenceExhausted, "Number of times the per-millisecond sequence was exhausted.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create sequence exhausted counter")
	}
	return &instruments{
		generated:   generated,
		regressions: regressions,
		exhausted:   exhausted,
		labels:      []metrics.Label{metrics.L(metrics.LabelWorkerID, strconv.FormatInt(workerID, 10))},
	}, nil
}

func (i *instruments) observe(exhausted bool, err error) {
	ctx := context.Background()
	if exhausted {
		i.exhausted.Inc(ctx, i.labels...)
	}
	switch {
	case err == nil:
		i.generated.Inc(ctx, i.labels...)
	case xerrors.Is(err, ErrClockRegression):
		i.regressions.Inc(ctx, i.labels...)
	}
}
