package notify

import "github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/model"

// PreviewLimit 通知预览的最大字符数
const PreviewLimit = 60

// NewMessageNotification 新消息通知
// 仅发给消息的接收方（发送者的对端）
type NewMessageNotification struct {
	ConversationID int64  `json:"conversationId"`
	MessageID      int64  `json:"messageId"`
	RecipientID    int64  `json:"recipientId"`
	SenderID       int64  `json:"senderId"`
	SenderName     string `json:"senderName"`
	Preview        string `json:"preview"`
	Timestamp      int64  `json:"timestamp"`
}

// ChatReadyNotice 聊天就绪通知
// 每个参与者每次会话期只发一次
type ChatReadyNotice struct {
	PrincipalID int64  `json:"principalId"`
	DisplayName string `json:"displayName"`
	Timestamp   int64  `json:"timestamp"`
}

// ConversationUpdate 会话状态变更信号
// Appended 在由追加消息引起的变更时非空
type ConversationUpdate struct {
	Conversation *model.Conversation `json:"conversation"`
	Appended     *model.Message      `json:"appended,omitempty"`
}

// Subscriber 引擎事件订阅者
// 回调在引擎的写路径上同步执行，实现方不应阻塞
type Subscriber interface {
	OnChatReady(n ChatReadyNotice)
	OnNewMessage(n NewMessageNotification)
	OnConversationUpdated(u ConversationUpdate)
}

// Preview 截断消息文本作为通知预览
// 超长时截断并追加省略号，预览连同省略号不超过 PreviewLimit 个字符
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLimit {
		return text
	}
	return string(runes[:PreviewLimit-1]) + "…"
}
