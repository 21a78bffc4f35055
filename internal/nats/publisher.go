package nats

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/notify"
)

// EventPublisher 引擎事件发布器
// 把引擎的出站事件转发到 NATS，供平台其他服务与推送网关消费
type EventPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewEventPublisher 创建事件发布器
func NewEventPublisher(nc *nats.Conn) *EventPublisher {
	return &EventPublisher{
		nc:     nc,
		logger: slog.Default(),
	}
}

// OnNewMessage 发布新消息通知
func (p *EventPublisher) OnNewMessage(n notify.NewMessageNotification) {
	p.publish(SubjectNewMessage, n)
}

// OnChatReady 发布聊天就绪通知
func (p *EventPublisher) OnChatReady(n notify.ChatReadyNotice) {
	p.publish(SubjectChatReady, n)
}

// OnConversationUpdated 发布会话变更信号
func (p *EventPublisher) OnConversationUpdated(u notify.ConversationUpdate) {
	p.publish(SubjectConversationUpdated, u)
}

// publish 序列化并发布事件
// 发布失败只记录日志，不影响引擎写路径
func (p *EventPublisher) publish(subject string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", "subject", subject, "error", err)
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish event", "subject", subject, "error", err)
		return
	}

	p.logger.Debug("Published event", "subject", subject)
}
