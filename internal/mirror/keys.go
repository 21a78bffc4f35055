package mirror

import "fmt"

const (
	// ConversationKeyPrefix 会话摘要 Redis Key 前缀
	ConversationKeyPrefix = "dm:conversation:"

	// ConversationIndexKeyPrefix 会话索引（按活跃时间排序）Key 前缀
	ConversationIndexKeyPrefix = "dm:conversation:index:"
)

// BuildConversationKey 构建参与者视角的会话摘要 Key
// Key: dm:conversation:{principalId}:{conversationId}
func BuildConversationKey(principalID, conversationID int64) string {
	return fmt.Sprintf("%s%d:%d", ConversationKeyPrefix, principalID, conversationID)
}

// BuildConversationIndexKey 构建参与者的会话索引 Key
// Key: dm:conversation:index:{principalId}
func BuildConversationIndexKey(principalID int64) string {
	return fmt.Sprintf("%s%d", ConversationIndexKeyPrefix, principalID)
}
