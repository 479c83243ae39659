package idgen

import "time"

// Clock 提供毫秒级墙上时间，测试中可替换为可控时钟
type Clock interface {
	NowMilli() int64
}

// SystemClock 读取系统时间
type SystemClock struct{}

// NowMilli 返回当前 Unix 毫秒
func (SystemClock) NowMilli() int64 {
	return time.Now().UnixMilli()
}

// ClockFunc 将普通函数适配为 Clock
type ClockFunc func() int64

// NowMilli 调用 f
func (f ClockFunc) NowMilli() int64 {
	return f()
}
