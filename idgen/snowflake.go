package idgen

import (
	"runtime"
	"sync"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/metrics"
	"github.com/ceyewan/idforge/xerrors"
)

// Snowflake 单个 worker 的 ID 生成器，并发安全。
// 同一实例生成的 ID 严格递增；worker id 不同的实例生成的 ID 不会重复。
type Snowflake struct {
	workerID int64
	epoch    int64
	clock    Clock
	logger   clog.Logger
	inst     *instruments

	mu            sync.Mutex
	lastTimestamp int64
	sequence      int64
}

// SnowflakeOption Snowflake 初始化选项
type SnowflakeOption func(*snowflakeOptions)

type snowflakeOptions struct {
	epoch  int64
	clock  Clock
	logger clog.Logger
	meter  metrics.Meter
}

// WithEpoch 设置 epoch（Unix 毫秒），默认 DefaultEpoch
func WithEpoch(epoch int64) SnowflakeOption {
	return func(o *snowflakeOptions) {
		o.epoch = epoch
	}
}

// WithClock 替换时钟，主要用于测试
func WithClock(clock Clock) SnowflakeOption {
	return func(o *snowflakeOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithSnowflakeLogger 设置 Logger
func WithSnowflakeLogger(logger clog.Logger) SnowflakeOption {
	return func(o *snowflakeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSnowflakeMeter 设置 Meter，记录生成数、时钟回拨与序列号耗尽次数
func WithSnowflakeMeter(meter metrics.Meter) SnowflakeOption {
	return func(o *snowflakeOptions) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// NewSnowflake 创建 Snowflake 生成器
//
//	sf, _ := idgen.NewSnowflake(1)
//	sf, _ := idgen.NewSnowflake(100, idgen.WithEpoch(epoch), idgen.WithSnowflakeLogger(logger))
func NewSnowflake(workerID int64, opts ...SnowflakeOption) (*Snowflake, error) {
	if workerID < 0 || workerID > MaxWorkerID {
		return nil, xerrors.WithCode(&InvalidWorkerIDError{WorkerID: workerID}, "worker_id_out_of_range")
	}

	o := &snowflakeOptions{
		epoch:  DefaultEpoch,
		clock:  SystemClock{},
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.epoch < 0 {
		return nil, xerrors.WithCode(xerrors.Wrapf(xerrors.ErrInvalidInput, "epoch %d is negative", o.epoch), "epoch_negative")
	}
	if now := o.clock.NowMilli(); o.epoch > now {
		return nil, xerrors.WithCode(xerrors.Wrapf(xerrors.ErrInvalidInput, "epoch %d is in the future (now %d)", o.epoch, now), "epoch_in_future")
	}

	inst, err := newInstruments(o.meter, workerID)
	if err != nil {
		return nil, err
	}

	sf := &Snowflake{
		workerID:      workerID,
		epoch:         o.epoch,
		clock:         o.clock,
		logger:        o.logger.With(clog.Int64("worker_id", workerID)),
		inst:          inst,
		lastTimestamp: -1,
	}
	sf.logger.Info("snowflake generator created", clog.Int64("epoch", o.epoch))
	return sf, nil
}

// NextID 生成下一个 ID。
//
// 时钟回拨时返回 *ClockRegressionError，且不修改内部状态；
// 同一毫秒内序列号耗尽时等待时钟进入下一毫秒。
func (s *Snowflake) NextID() (int64, error) {
	id, exhausted, err := s.next()
	s.inst.observe(exhausted, err)
	if err != nil {
		var regression *ClockRegressionError
		if xerrors.As(err, &regression) {
			s.logger.Warn("clock moved backwards",
				clog.Int64("drift_ms", regression.Drift),
				clog.Int64("last", regression.Last),
				clog.Int64("now", regression.Now),
			)
		}
		return 0, err
	}
	return id, nil
}

func (s *Snowflake) next() (id int64, exhausted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.NowMilli()
	if now < s.lastTimestamp {
		return 0, false, &ClockRegressionError{
			Last:  s.lastTimestamp,
			Now:   now,
			Drift: s.lastTimestamp - now,
		}
	}

	var sequence int64
	if now == s.lastTimestamp {
		sequence = s.sequence + 1
		if sequence > MaxSequence {
			exhausted = true
			now = s.waitNextMilli()
			sequence = 0
		}
	}

	// 校验通过后才提交状态
	if delta := now - s.epoch; delta < 0 || delta > MaxTimestamp {
		return 0, exhausted, xerrors.Wrapf(ErrTimestampOverflow, "now=%d epoch=%d", now, s.epoch)
	}

	s.lastTimestamp = now
	s.sequence = sequence
	return Compose(now, s.epoch, s.workerID, s.sequence), exhausted, nil
}

// waitNextMilli 轮询时钟直到越过 lastTimestamp，最多约 1ms
func (s *Snowflake) waitNextMilli() int64 {
	now := s.clock.NowMilli()
	for now <= s.lastTimestamp {
		runtime.Gosched()
		now = s.clock.NowMilli()
	}
	return now
}

// NextIDs 连续生成 n 个 ID，遇到第一个错误即停止并返回该错误
func (s *Snowflake) NextIDs(n int) ([]int64, error) {
	if n <= 0 {
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "count %d must be positive", n)
	}
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id, err := s.NextID()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// WorkerID 返回构造时指定的 worker id
func (s *Snowflake) WorkerID() int64 {
	return s.workerID
}

// Epoch 返回 epoch（Unix 毫秒）
func (s *Snowflake) Epoch() int64 {
	return s.epoch
}

// Decompose 使用本生成器的 epoch 解码 ID
func (s *Snowflake) Decompose(id int64) Parts {
	return Decompose(id, s.epoch)
}
