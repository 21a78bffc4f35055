package nats

// NATS Subject 常量定义
const (
	// SubjectNewMessage 新消息通知
	SubjectNewMessage = "learniverse.dm.notify.new_message"

	// SubjectChatReady 聊天就绪通知
	SubjectChatReady = "learniverse.dm.notify.ready"

	// SubjectConversationUpdated 会话状态变更
	SubjectConversationUpdated = "learniverse.dm.conversation.updated"
)
