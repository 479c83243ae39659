package idgen

import (
	"fmt"
	"time"

	"github.com/ceyewan/idforge/xerrors"
)

var (
	// ErrInvalidWorkerID worker id 超出 [0, 1023]
	ErrInvalidWorkerID = xerrors.New("idgen: invalid worker id")

	// ErrClockRegression 时钟回拨
	ErrClockRegression = xerrors.New("idgen: clock moved backwards")

	// ErrTimestampOverflow 当前时间早于 epoch，或距 epoch 超过 41 位能表示的范围
	ErrTimestampOverflow = xerrors.New("idgen: timestamp out of range")

	// ErrLeaseLost worker id 租约丢失，节点拒绝继续生成
	ErrLeaseLost = xerrors.New("idgen: worker id lease lost")

	// ErrWorkerIDExhausted 没有可用的 worker id
	ErrWorkerIDExhausted = xerrors.New("idgen: no available worker id")

	// ErrConnectorNil 分配器所需的连接器为空
	ErrConnectorNil = xerrors.New("idgen: connector is nil")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = xerrors.New("idgen: node closed")
)

// InvalidWorkerIDError 描述越界的 worker id，errors.Is(err, ErrInvalidWorkerID) 成立
type InvalidWorkerIDError struct {
	WorkerID int64
}

func (e *InvalidWorkerIDError) Error() string {
	return fmt.Sprintf("idgen: worker id %d out of range [0, %d]", e.WorkerID, MaxWorkerID)
}

func (e *InvalidWorkerIDError) Is(target error) bool {
	return target == ErrInvalidWorkerID
}

// ClockRegressionError 描述一次时钟回拨，Drift 为回拨的毫秒数。
// 生成器不会自行重试，由调用方决定等待、告警或放弃
type ClockRegressionError struct {
	Last  int64 // 上次生成 ID 的 Unix 毫秒
	Now   int64 // 本次读取到的 Unix 毫秒
	Drift int64 // Last - Now
}

func (e *ClockRegressionError) Error() string {
	return fmt.Sprintf("idgen: clock moved backwards by %dms (last=%d now=%d)", e.Drift, e.Last, e.Now)
}

func (e *ClockRegressionError) Is(target error) bool {
	return target == ErrClockRegression
}

// RetryAfter 返回时钟追上所需的最短等待时间
func (e *ClockRegressionError) RetryAfter() time.Duration {
	return time.Duration(e.Drift+1) * time.Millisecond
}
