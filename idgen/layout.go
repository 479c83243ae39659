package idgen

import "time"

// 位宽与掩码
const (
	TimestampBits = 41
	WorkerIDBits  = 10
	SequenceBits  = 12

	MaxWorkerID  = 1<<WorkerIDBits - 1  // 1023
	MaxSequence  = 1<<SequenceBits - 1  // 4095
	MaxTimestamp = 1<<TimestampBits - 1 // 距 epoch 约 69.7 年

	workerIDShift  = SequenceBits
	timestampShift = WorkerIDBits + SequenceBits
)

// DefaultEpoch 2016-01-01T00:00:00Z 的 Unix 毫秒
const DefaultEpoch int64 = 1451606400000

// Parts 是 ID 解码后的各字段
type Parts struct {
	ID        int64     `json:"id,string"`
	Time      time.Time `json:"time"`
	Timestamp int64     `json:"timestamp"` // Unix 毫秒
	WorkerID  int64     `json:"worker_id"`
	Sequence  int64     `json:"sequence"`
}

// Compose 按固定布局拼装 ID，timestamp 为 Unix 毫秒
func Compose(timestamp, epoch, workerID, sequence int64) int64 {
	return (timestamp-epoch)<<timestampShift |
		(workerID&MaxWorkerID)<<workerIDShift |
		sequence&MaxSequence
}

// Decompose 将 ID 拆回时间戳、worker id 与序列号
func Decompose(id, epoch int64) Parts {
	ts := TimestampOf(id, epoch)
	return Parts{
		ID:        id,
		Time:      time.UnixMilli(ts).UTC(),
		Timestamp: ts,
		WorkerID:  WorkerIDOf(id),
		Sequence:  SequenceOf(id),
	}
}

// TimestampOf 返回 ID 中的 Unix 毫秒时间戳
func TimestampOf(id, epoch int64) int64 {
	return id>>timestampShift + epoch
}

// WorkerIDOf 返回 ID 中的 worker id
func WorkerIDOf(id int64) int64 {
	return id >> workerIDShift & MaxWorkerID
}

// SequenceOf 返回 ID 中的序列号
func SequenceOf(id int64) int64 {
	return id & MaxSequence
}
