package task

import (
	"context"
	"time"
)

// TaskFunc 任务执行函数类型
// 回调只应捕获不可变的标识（会话ID、消息ID），实际状态在执行时重新读取
type TaskFunc func(ctx context.Context) error

// Task 延迟任务
type Task struct {
	ID        string    // 任务唯一ID，同时作为取消句柄
	Target    string    // 操作对象标识（用于日志）
	Delay     int       // 延迟秒数
	Fn        TaskFunc  // 执行函数
	CreatedAt time.Time // 创建时间

	rounds int // 剩余整圈数，由时间轮维护
}

// NewTask 创建新任务
func NewTask(id, target string, delay int, fn TaskFunc) *Task {
	return &Task{
		ID:        id,
		Target:    target,
		Delay:     delay,
		Fn:        fn,
		CreatedAt: time.Now(),
	}
}

// Execute 执行任务
func (t *Task) Execute(ctx context.Context) error {
	if t.Fn == nil {
		return nil
	}
	return t.Fn(ctx)
}
