package task

import (
	"sync"
	"time"
)

const (
	// SlotCount 时间轮槽位数量 (60秒)
	SlotCount = 60
)

// TimeWheel 时间轮
// 任务按延迟落入槽位；超过一圈（60秒）的延迟按剩余圈数留在槽内，
// 到期圈才触发。index 记录每个任务所在槽位，取消时无需知道任务的原始延迟
type TimeWheel struct {
	slots       [SlotCount]*Slot // 60个槽位
	index       map[string]int   // 任务ID -> 槽位索引
	currentSlot int              // 当前槽位索引
	mu          sync.Mutex       // 保护 index 与 currentSlot
	ticker      *time.Ticker     // 1秒定时器
}

// NewTimeWheel 创建时间轮
func NewTimeWheel() *TimeWheel {
	tw := &TimeWheel{
		index:       make(map[string]int),
		currentSlot: 0,
		ticker:      time.NewTicker(time.Second),
	}

	// 初始化所有槽位
	for i := 0; i < SlotCount; i++ {
		tw.slots[i] = NewSlot()
	}

	return tw
}

// AddTask 添加任务到时间轮
// 同ID任务重复添加时，旧任务被替换；延迟没有上限，
// 长延迟任务的触发顺序与短延迟任务保持一致
func (tw *TimeWheel) AddTask(task *Task) error {
	if task.Delay < 1 {
		task.Delay = 1 // 最小1秒
	}

	tw.mu.Lock()
	if prev, ok := tw.index[task.ID]; ok {
		tw.slots[prev].RemoveTask(task.ID)
	}
	task.rounds = (task.Delay - 1) / SlotCount
	targetSlot := (tw.currentSlot + task.Delay) % SlotCount
	tw.index[task.ID] = targetSlot
	tw.mu.Unlock()

	tw.slots[targetSlot].AddTask(task)

	return nil
}

// RemoveTask 按任务ID从时间轮删除任务
func (tw *TimeWheel) RemoveTask(taskID string) bool {
	tw.mu.Lock()
	targetSlot, ok := tw.index[taskID]
	if ok {
		delete(tw.index, taskID)
	}
	tw.mu.Unlock()

	if !ok {
		return false
	}

	return tw.slots[targetSlot].RemoveTask(taskID)
}

// Tick 推进时间轮 (由调度器调用)
func (tw *TimeWheel) Tick() []*Task {
	// 推进到下一个槽位
	tw.mu.Lock()
	tw.currentSlot = (tw.currentSlot + 1) % SlotCount
	currentSlot := tw.currentSlot
	tw.mu.Unlock()

	// 收割当前槽位本圈到期的任务
	tasks := tw.slots[currentSlot].Collect()

	if len(tasks) > 0 {
		tw.mu.Lock()
		for _, task := range tasks {
			delete(tw.index, task.ID)
		}
		tw.mu.Unlock()
	}

	return tasks
}

// GetCurrentSlot 获取当前槽位索引
func (tw *TimeWheel) GetCurrentSlot() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	return tw.currentSlot
}

// Stop 停止时间轮
func (tw *TimeWheel) Stop() {
	tw.ticker.Stop()
}

// GetTicker 获取定时器
func (tw *TimeWheel) GetTicker() *time.Ticker {
	return tw.ticker
}

// GetTotalTaskCount 获取所有槽位的任务总数
func (tw *TimeWheel) GetTotalTaskCount() int {
	total := 0
	for i := 0; i < SlotCount; i++ {
		total += tw.slots[i].Count()
	}
	return total
}
