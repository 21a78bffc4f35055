package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/model"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/notify"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/store"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/task"
)

// Scheduler 延迟任务调度接口
// 任务ID即取消句柄；测试中用手动触发的假实现替换时间轮
type Scheduler interface {
	Schedule(t *task.Task) error
	Cancel(taskID string) bool
}

// Machine 投递状态机
// 每条新消息调度两次延迟推进：sent->delivered（T1秒后）、delivered->read（再T2秒后）；
// 显式标记已读会取消未触发的推进，已触发的推进按当前状态判定为无操作
type Machine struct {
	sched          Scheduler
	store          *store.ConversationStore
	dispatcher     *notify.Dispatcher
	deliveredAfter int // T1，秒
	readAfter      int // T2，秒
	logger         *slog.Logger
}

// NewMachine 创建投递状态机
func NewMachine(sched Scheduler, st *store.ConversationStore, dispatcher *notify.Dispatcher, deliveredAfter, readAfter int) *Machine {
	if deliveredAfter <= 0 {
		deliveredAfter = 1
	}
	if readAfter <= 0 {
		readAfter = 2
	}

	return &Machine{
		sched:          sched,
		store:          st,
		dispatcher:     dispatcher,
		deliveredAfter: deliveredAfter,
		readAfter:      readAfter,
		logger:         slog.Default(),
	}
}

// TaskID 状态推进任务的唯一键
// 以 (会话ID, 消息ID, 目标状态) 标识，重复或过期触发由当前状态判定
func TaskID(conversationID, messageID int64, target model.MessageStatus) string {
	return fmt.Sprintf("dm:%d:%d:%s", conversationID, messageID, target)
}

// Track 为新追加的消息调度投递推进
// 两个延迟都相对消息创建时刻：delivered 在 T1 秒后，read 在 T1+T2 秒后
func (m *Machine) Track(conversationID, messageID int64) {
	target := fmt.Sprintf("conversation:%d/message:%d", conversationID, messageID)

	deliveredTask := task.NewTask(
		TaskID(conversationID, messageID, model.StatusDelivered),
		target,
		m.deliveredAfter,
		func(ctx context.Context) error {
			m.apply(conversationID, messageID, model.StatusDelivered)
			return nil
		},
	)

	readTask := task.NewTask(
		TaskID(conversationID, messageID, model.StatusRead),
		target,
		m.deliveredAfter+m.readAfter,
		func(ctx context.Context) error {
			m.apply(conversationID, messageID, model.StatusRead)
			return nil
		},
	)

	if err := m.sched.Schedule(deliveredTask); err != nil {
		m.logger.Error("Failed to schedule delivered advance", "taskID", deliveredTask.ID, "error", err)
	}
	if err := m.sched.Schedule(readTask); err != nil {
		m.logger.Error("Failed to schedule read advance", "taskID", readTask.ID, "error", err)
	}
}

// CancelPending 取消消息尚未触发的推进
// 任务已触发或不存在时安全无操作
func (m *Machine) CancelPending(conversationID, messageID int64) {
	m.sched.Cancel(TaskID(conversationID, messageID, model.StatusDelivered))
	m.sched.Cancel(TaskID(conversationID, messageID, model.StatusRead))
}

// apply 提交状态推进到存储的串行写路径
// 推进是否生效由存储按当前状态判定；生效时广播会话变更
func (m *Machine) apply(conversationID, messageID int64, target model.MessageStatus) {
	changed, conv := m.store.AdvanceStatus(conversationID, messageID, target)
	if !changed {
		return
	}

	m.logger.Debug("Message status advanced",
		"conversationId", conversationID,
		"messageId", messageID,
		"status", target.String())

	m.dispatcher.ConversationUpdated(conv)
}
