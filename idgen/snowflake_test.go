package idgen

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/idforge/metrics"
	"github.com/ceyewan/idforge/xerrors"
)

// manualClock 手动控制的时钟。AdvanceAfter 让时钟在若干次读取之后跳到新值
type manualClock struct {
	mu      sync.Mutex
	now     int64
	pending int
	next    int64
	reads   int
}

func newManualClock(now int64) *manualClock {
	return &manualClock{now: now}
}

func (c *manualClock) NowMilli() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	now := c.now
	if c.pending > 0 {
		c.pending--
		if c.pending == 0 {
			c.now = c.next
		}
	}
	return now
}

func (c *manualClock) Set(now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	c.pending = 0
}

func (c *manualClock) AdvanceAfter(reads int, to int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = reads
	c.next = to
}

const testNow = DefaultEpoch + 1_000_000

func newTestSnowflake(t *testing.T, workerID int64, clock Clock, opts ...SnowflakeOption) *Snowflake {
	t.Helper()
	sf, err := NewSnowflake(workerID, append([]SnowflakeOption{WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	return sf
}

func TestNewSnowflake_WorkerIDRange(t *testing.T) {
	sf, err := NewSnowflake(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), sf.WorkerID())

	sf, err = NewSnowflake(MaxWorkerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1023), sf.WorkerID())

	for _, id := range []int64{-1, 1024, 1 << 20} {
		_, err := NewSnowflake(id)
		require.Error(t, err, "worker id %d 应被拒绝", id)
		assert.ErrorIs(t, err, ErrInvalidWorkerID)
		assert.Equal(t, "worker_id_out_of_range", xerrors.GetCode(err))

		var invalid *InvalidWorkerIDError
		require.True(t, xerrors.As(err, &invalid))
		assert.Equal(t, id, invalid.WorkerID)
	}
}

func TestNewSnowflake_Epoch(t *testing.T) {
	clock := newManualClock(testNow)

	sf := newTestSnowflake(t, 1, clock)
	assert.Equal(t, DefaultEpoch, sf.Epoch())

	_, err := NewSnowflake(1, WithClock(clock), WithEpoch(-1))
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	assert.Equal(t, "epoch_negative", xerrors.GetCode(err))

	_, err = NewSnowflake(1, WithClock(clock), WithEpoch(testNow+1))
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	assert.Equal(t, "epoch_in_future", xerrors.GetCode(err))

	custom := testNow - 500
	sf = newTestSnowflake(t, 3, clock, WithEpoch(custom))
	id, err := sf.NextID()
	require.NoError(t, err)
	assert.Equal(t, int64(500)<<22|3<<12, id)
	assert.Equal(t, testNow, sf.Decompose(id).Timestamp)
}

func TestNextID_StrictlyIncreasing(t *testing.T) {
	sf, err := NewSnowflake(5)
	require.NoError(t, err)

	last := int64(-1)
	for i := 0; i < 20000; i++ {
		id, err := sf.NextID()
		require.NoError(t, err)
		require.Greater(t, id, last, "第 %d 个 ID 未严格递增", i)
		last = id
	}
}

func TestNextID_SameMillisecondSequence(t *testing.T) {
	clock := newManualClock(testNow)
	sf := newTestSnowflake(t, 9, clock)

	for want := int64(0); want < 5; want++ {
		id, err := sf.NextID()
		require.NoError(t, err)
		parts := sf.Decompose(id)
		assert.Equal(t, testNow, parts.Timestamp)
		assert.Equal(t, int64(9), parts.WorkerID)
		assert.Equal(t, want, parts.Sequence)
	}

	// 进入新的毫秒，序列号归零
	clock.Set(testNow + 1)
	id, err := sf.NextID()
	require.NoError(t, err)
	assert.Equal(t, int64(0), SequenceOf(id))
	assert.Equal(t, testNow+1, TimestampOf(id, DefaultEpoch))
}

func TestNextID_SequenceExhaustionWaitsForNextMillisecond(t *testing.T) {
	reg := prometheus.NewRegistry()
	meter, err := metrics.New(&metrics.Config{Enabled: true, ServiceName: "idgen-test"}, metrics.WithRegistry(reg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = meter.Shutdown(context.Background()) })

	clock := newManualClock(testNow)
	sf := newTestSnowflake(t, 1, clock, WithSnowflakeMeter(meter))

	var last int64
	for i := 0; i <= MaxSequence; i++ {
		id, err := sf.NextID()
		require.NoError(t, err)
		require.Equal(t, int64(i), SequenceOf(id))
		require.Equal(t, testNow, TimestampOf(id, DefaultEpoch))
		last = id
	}

	// 第 4097 次调用：前几次读取仍是同一毫秒，之后时钟前进
	clock.AdvanceAfter(3, testNow+1)
	before := clock.reads
	id, err := sf.NextID()
	require.NoError(t, err)
	assert.Greater(t, id, last)
	assert.Equal(t, int64(0), SequenceOf(id))
	assert.Equal(t, testNow+1, TimestampOf(id, DefaultEpoch))
	assert.Equal(t, int64(1), WorkerIDOf(id))
	assert.GreaterOrEqual(t, clock.reads-before, 4, "应轮询时钟直到进入下一毫秒")

	assert.Equal(t, 1.0, counterValue(t, reg, MetricSequenceExhausted))
	assert.Equal(t, float64(MaxSequence+2), counterValue(t, reg, MetricIDsGenerated))
}

func TestNextID_ClockRegression(t *testing.T) {
	reg := prometheus.NewRegistry()
	meter, err := metrics.New(&metrics.Config{Enabled: true, ServiceName: "idgen-test"}, metrics.WithRegistry(reg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = meter.Shutdown(context.Background()) })

	clock := newManualClock(testNow + 10)
	sf := newTestSnowflake(t, 2, clock, WithSnowflakeMeter(meter))

	first, err := sf.NextID()
	require.NoError(t, err)

	clock.Set(testNow + 5)
	id, err := sf.NextID()
	require.Error(t, err)
	assert.Zero(t, id)
	assert.ErrorIs(t, err, ErrClockRegression)

	var regression *ClockRegressionError
	require.True(t, xerrors.As(err, &regression))
	assert.Equal(t, int64(5), regression.Drift)
	assert.Equal(t, testNow+10, regression.Last)
	assert.Equal(t, testNow+5, regression.Now)
	assert.Equal(t, "6ms", regression.RetryAfter().String())

	// 回拨期间不修改状态：时钟恢复后从原序列号继续
	clock.Set(testNow + 10)
	next, err := sf.NextID()
	require.NoError(t, err)
	assert.Greater(t, next, first)
	assert.Equal(t, int64(1), SequenceOf(next))

	assert.Equal(t, 1.0, counterValue(t, reg, MetricClockRegressions))
	assert.Equal(t, 2.0, counterValue(t, reg, MetricIDsGenerated))
}

func TestNextID_TimestampOverflow(t *testing.T) {
	clock := newManualClock(DefaultEpoch + MaxTimestamp)
	sf := newTestSnowflake(t, 1, clock)

	id, err := sf.NextID()
	require.NoError(t, err)
	assert.Equal(t, DefaultEpoch+MaxTimestamp, TimestampOf(id, DefaultEpoch))
	assert.Positive(t, id)

	clock.Set(DefaultEpoch + MaxTimestamp + 1)
	_, err = sf.NextID()
	assert.ErrorIs(t, err, ErrTimestampOverflow)

	// 状态未提交，同一毫秒仍可继续
	clock.Set(DefaultEpoch + MaxTimestamp)
	next, err := sf.NextID()
	require.NoError(t, err)
	assert.Equal(t, int64(1), SequenceOf(next))
}

func TestNextID_DistinctWorkersNeverCollide(t *testing.T) {
	clock := newManualClock(testNow)
	a := newTestSnowflake(t, 1, clock)
	b := newTestSnowflake(t, 2, clock)

	seen := make(map[int64]struct{})
	for i := 0; i < 3000; i++ {
		if i%1000 == 0 {
			clock.Set(testNow + int64(i/1000))
		}
		for _, sf := range []*Snowflake{a, b} {
			id, err := sf.NextID()
			require.NoError(t, err)
			_, dup := seen[id]
			require.False(t, dup, "ID %d 重复", id)
			seen[id] = struct{}{}
			assert.Equal(t, sf.WorkerID(), WorkerIDOf(id))
		}
	}
}

func TestNextID_Concurrent(t *testing.T) {
	sf, err := NewSnowflake(42)
	require.NoError(t, err)

	const goroutines, perG = 8, 2000
	results := make([][]int64, goroutines)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			ids := make([]int64, 0, perG)
			for i := 0; i < perG; i++ {
				id, err := sf.NextID()
				if err != nil {
					t.Errorf("NextID 失败: %v", err)
					return
				}
				ids = append(ids, id)
			}
			results[g] = ids
		}(g)
	}
	wg.Wait()

	seen := make(map[int64]struct{}, goroutines*perG)
	for _, ids := range results {
		for i, id := range ids {
			if i > 0 {
				assert.Greater(t, id, ids[i-1], "同一 goroutine 内应递增")
			}
			_, dup := seen[id]
			require.False(t, dup, "并发生成了重复 ID %d", id)
			seen[id] = struct{}{}
		}
	}
	assert.Len(t, seen, goroutines*perG)
}

func TestNextIDs(t *testing.T) {
	clock := newManualClock(testNow)
	sf := newTestSnowflake(t, 4, clock)

	ids, err := sf.NextIDs(10)
	require.NoError(t, err)
	require.Len(t, ids, 10)
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}

	_, err = sf.NextIDs(0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	clock.Set(testNow - 1)
	ids, err = sf.NextIDs(3)
	assert.ErrorIs(t, err, ErrClockRegression)
	assert.Nil(t, ids)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	prefix := strings.TrimSuffix(name, "_total")
	var sum float64
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), prefix) || mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}
