package engine

import (
	"context"
	"log/slog"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/delivery"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/identity"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/model"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/notify"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/store"
)

// Engine 会话与消息投递引擎（编排层）
// 所有写操作经存储的串行写路径；派生状态与定时器在调用返回前就位
type Engine struct {
	store      *store.ConversationStore
	machine    *delivery.Machine
	dispatcher *notify.Dispatcher
	provider   identity.Provider
	logger     *slog.Logger
}

// New 创建引擎
func New(st *store.ConversationStore, machine *delivery.Machine, dispatcher *notify.Dispatcher, provider identity.Provider) *Engine {
	return &Engine{
		store:      st,
		machine:    machine,
		dispatcher: dispatcher,
		provider:   provider,
		logger:     slog.Default(),
	}
}

// Open 参与者进入聊天
// 本会话期内首次进入时发送一次就绪通知，之后抑制
func (e *Engine) Open(ctx context.Context, principalID int64) error {
	p, err := e.provider.Principal(ctx, principalID)
	if err != nil {
		return err
	}

	e.dispatcher.NotifyReady(p)
	return nil
}

// FindOrCreate 查找或创建两个参与者之间的会话
func (e *Engine) FindOrCreate(ctx context.Context, principalID, peerID int64) (*model.Conversation, error) {
	a, err := e.provider.Principal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	b, err := e.provider.Principal(ctx, peerID)
	if err != nil {
		return nil, err
	}

	conv, created, err := e.store.FindOrCreate(a, b)
	if err != nil {
		return nil, err
	}

	if created {
		e.logger.Info("Conversation started",
			"conversationId", conv.ID,
			"principalId", a.ID,
			"peerId", b.ID)
	}

	return conv, nil
}

// Ingest 消息进入引擎的唯一入口
// 真人发送与模拟器注入走完全相同的路径：追加、调度投递推进、分发通知，
// 全部在返回前完成
func (e *Engine) Ingest(ctx context.Context, conversationID, senderID int64, text string) (model.Message, error) {
	msg, conv, err := e.store.Append(conversationID, senderID, text)
	if err != nil {
		return model.Message{}, err
	}

	e.machine.Track(conversationID, msg.ID)
	e.dispatcher.MessageAppended(conv, msg)

	e.logger.Debug("Message ingested",
		"conversationId", conversationID,
		"messageId", msg.ID,
		"senderId", senderID)

	return msg, nil
}

// MarkConversationRead 标记会话已读
// 受影响消息直接跳到 read 并取消未触发的定时器；重复调用为无操作
func (e *Engine) MarkConversationRead(ctx context.Context, conversationID, readerID int64) error {
	affected, conv, err := e.store.MarkConversationRead(conversationID, readerID)
	if err != nil {
		return err
	}

	if len(affected) == 0 {
		return nil
	}

	for _, messageID := range affected {
		e.machine.CancelPending(conversationID, messageID)
	}

	e.dispatcher.ConversationUpdated(conv)

	e.logger.Debug("Conversation marked read",
		"conversationId", conversationID,
		"readerId", readerID,
		"messageCount", len(affected))

	return nil
}

// ListMessages 按插入序返回会话消息
func (e *Engine) ListMessages(conversationID int64) ([]model.Message, error) {
	return e.store.ListMessages(conversationID)
}

// UnreadCount 会话内指定读者的未读数
func (e *Engine) UnreadCount(conversationID, readerID int64) (int, error) {
	return e.store.UnreadCount(conversationID, readerID)
}

// TotalUnread 读者的未读总数
func (e *Engine) TotalUnread(readerID int64) int {
	return e.store.TotalUnread(readerID)
}

// Conversations 参与者的会话列表，按最近活跃倒序
func (e *Engine) Conversations(principalID int64) []*model.Conversation {
	return e.store.Conversations(principalID)
}

// Subscribe 注册引擎事件订阅者
func (e *Engine) Subscribe(sub notify.Subscriber) {
	e.dispatcher.Subscribe(sub)
}
