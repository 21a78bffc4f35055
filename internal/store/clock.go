package store

import (
	"sync"
	"time"
)

// Clock 单调时钟
// 本地时间可能回拨，消息时间戳必须严格递增才能保证插入序
type Clock struct {
	mu   sync.Mutex
	last time.Time
}

// NewClock 创建单调时钟
func NewClock() *Clock {
	return &Clock{}
}

// Now 返回严格递增的本地时间戳
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now

	return now
}
