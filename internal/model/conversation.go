package model

import "time"

// MessageStatus 消息投递状态
// 状态只能前进：sent -> delivered -> read
type MessageStatus int

const (
	StatusSent      MessageStatus = 0 // 已发送
	StatusDelivered MessageStatus = 1 // 已送达
	StatusRead      MessageStatus = 2 // 已读
)

// String 状态名称
func (s MessageStatus) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusRead:
		return "read"
	default:
		return "unknown"
	}
}

// Message 消息实体
// 除 Status 外创建后不可变
type Message struct {
	ID             int64         `json:"id"`
	ConversationID int64         `json:"conversationId"`
	SenderID       int64         `json:"senderId"`
	Text           string        `json:"text"`
	CreatedAt      time.Time     `json:"createdAt"`
	Status         MessageStatus `json:"status"`
}

// Conversation 两人会话
// 同一对参与者至多存在一个会话；消息序列只追加不删除
type Conversation struct {
	ID           int64        `json:"id"`
	Participants [2]Principal `json:"participants"`
	Messages     []Message    `json:"messages"`
	LastActiveAt time.Time    `json:"lastActiveAt"`
}

// HasParticipant 检查是否为会话参与者
func (c *Conversation) HasParticipant(principalID int64) bool {
	return c.Participants[0].ID == principalID || c.Participants[1].ID == principalID
}

// Peer 返回指定参与者的对端
func (c *Conversation) Peer(principalID int64) (Principal, bool) {
	switch principalID {
	case c.Participants[0].ID:
		return c.Participants[1], true
	case c.Participants[1].ID:
		return c.Participants[0], true
	default:
		return Principal{}, false
	}
}

// UnreadFor 指定读者视角的未读数
// 未读 = 对端发送且状态未达 read 的消息数，始终由当前消息状态推导
func (c *Conversation) UnreadFor(readerID int64) int {
	count := 0
	for i := range c.Messages {
		m := &c.Messages[i]
		if m.SenderID != readerID && m.Status != StatusRead {
			count++
		}
	}
	return count
}

// Clone 深拷贝会话快照，供订阅者安全读取
func (c *Conversation) Clone() *Conversation {
	snapshot := &Conversation{
		ID:           c.ID,
		Participants: c.Participants,
		LastActiveAt: c.LastActiveAt,
	}
	snapshot.Messages = make([]Message, len(c.Messages))
	copy(snapshot.Messages, c.Messages)
	return snapshot
}
