package mirror

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/notify"
)

// writeTimeout 单次镜像写入的超时
const writeTimeout = 2 * time.Second

// ConversationMirror 会话摘要镜像（基于 Redis）
// 订阅引擎的会话变更信号，把每个参与者视角的摘要（未读数、最近消息、活跃时间）
// 写入 Redis 供收件箱页直接读取；引擎内存状态始终是权威数据
type ConversationMirror struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewConversationMirror 创建会话镜像
func NewConversationMirror(redisClient *redis.Client) *ConversationMirror {
	return &ConversationMirror{
		redisClient: redisClient,
		logger:      slog.Default(),
	}
}

// OnConversationUpdated 会话变更时刷新两个参与者的摘要
func (m *ConversationMirror) OnConversationUpdated(u notify.ConversationUpdate) {
	conv := u.Conversation

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	lastActiveAt := conv.LastActiveAt.UnixMilli()
	var lastMsgID int64
	if len(conv.Messages) > 0 {
		lastMsgID = conv.Messages[len(conv.Messages)-1].ID
	}

	pipe := m.redisClient.Pipeline()
	for _, p := range conv.Participants {
		convKey := BuildConversationKey(p.ID, conv.ID)
		idxKey := BuildConversationIndexKey(p.ID)
		peer, _ := conv.Peer(p.ID)

		pipe.HSet(ctx, convKey,
			"peer_id", peer.ID,
			"peer_name", peer.DisplayName,
			"last_msg_id", lastMsgID,
			"unread_count", conv.UnreadFor(p.ID),
			"last_active_at", lastActiveAt,
		)
		pipe.ZAdd(ctx, idxKey, redis.Z{
			Score:  float64(lastActiveAt),
			Member: strconv.FormatInt(conv.ID, 10),
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("Failed to mirror conversation",
			"conversationId", conv.ID,
			"error", err)
	}
}

// OnNewMessage 摘要在会话变更信号里刷新，这里无需处理
func (m *ConversationMirror) OnNewMessage(n notify.NewMessageNotification) {}

// OnChatReady 镜像不关心就绪通知
func (m *ConversationMirror) OnChatReady(n notify.ChatReadyNotice) {}
