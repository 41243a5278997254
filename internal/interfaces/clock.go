package interfaces

import "time"

// Clock 时间来源，便于测试周快照触发条件
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时钟
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
