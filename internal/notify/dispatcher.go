package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/model"
)

// Dispatcher 通知分发器
// 观察引擎状态变更，向订阅者（界面层、镜像、归档、模拟器）同步分发事件
type Dispatcher struct {
	mu     sync.Mutex
	subs   []Subscriber
	ready  map[int64]bool // 会话期内已发过就绪通知的参与者
	logger *slog.Logger
}

// NewDispatcher 创建通知分发器
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		ready:  make(map[int64]bool),
		logger: slog.Default(),
	}
}

// Subscribe 注册订阅者
func (d *Dispatcher) Subscribe(sub Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.subs = append(d.subs, sub)
}

// NotifyReady 发送聊天就绪通知
// 同一参与者在本会话期内重复初始化时抑制
func (d *Dispatcher) NotifyReady(p model.Principal) {
	d.mu.Lock()
	if d.ready[p.ID] {
		d.mu.Unlock()
		return
	}
	d.ready[p.ID] = true
	subs := d.subscribersLocked()
	d.mu.Unlock()

	notice := ChatReadyNotice{
		PrincipalID: p.ID,
		DisplayName: p.DisplayName,
		Timestamp:   time.Now().UnixMilli(),
	}

	for _, sub := range subs {
		sub.OnChatReady(notice)
	}
}

// MessageAppended 消息追加后的分发
// 向发送者对端发出新消息通知，并广播会话变更信号
func (d *Dispatcher) MessageAppended(conv *model.Conversation, msg model.Message) {
	peer, ok := conv.Peer(msg.SenderID)
	if !ok {
		// 存储层已校验参与者，此处仅防御
		d.logger.Warn("Appended message has no peer", "conversationId", conv.ID, "senderId", msg.SenderID)
		return
	}

	sender, _ := conv.Peer(peer.ID)

	notification := NewMessageNotification{
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		RecipientID:    peer.ID,
		SenderID:       msg.SenderID,
		SenderName:     sender.DisplayName,
		Preview:        Preview(msg.Text),
		Timestamp:      msg.CreatedAt.UnixMilli(),
	}

	appended := msg
	update := ConversationUpdate{Conversation: conv, Appended: &appended}

	for _, sub := range d.subscribers() {
		sub.OnNewMessage(notification)
		sub.OnConversationUpdated(update)
	}
}

// ConversationUpdated 广播会话状态变更（已读、状态推进）
func (d *Dispatcher) ConversationUpdated(conv *model.Conversation) {
	update := ConversationUpdate{Conversation: conv}

	for _, sub := range d.subscribers() {
		sub.OnConversationUpdated(update)
	}
}

// subscribersLocked 复制订阅者列表（调用方已持锁）
func (d *Dispatcher) subscribersLocked() []Subscriber {
	subs := make([]Subscriber, len(d.subs))
	copy(subs, d.subs)
	return subs
}

// subscribers 加锁复制订阅者列表
func (d *Dispatcher) subscribers() []Subscriber {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.subscribersLocked()
}
