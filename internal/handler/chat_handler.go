package handler

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/apperrors"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/engine"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/middleware"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/model"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/pkg/response"
)

// ChatHandler 私信处理器
// 界面层通过这里消费引擎；参与者身份一律来自认证中间件
type ChatHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewChatHandler 创建私信处理器
func NewChatHandler(eng *engine.Engine) *ChatHandler {
	return &ChatHandler{
		engine: eng,
		logger: slog.Default(),
	}
}

// StartConversationRequest 发起会话请求
type StartConversationRequest struct {
	PeerID int64 `json:"peer_id" binding:"required"`
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// ListConversations 获取当前参与者的会话列表
// GET /api/v1/chat/conversations
func (h *ChatHandler) ListConversations(c *gin.Context) {
	principalID := middleware.GetPrincipalID(c)

	// 进入聊天页视为引擎初始化，就绪通知由分发器抑制重复
	if err := h.engine.Open(c.Request.Context(), principalID); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	// 可按对端角色筛选（导师端/学员端的收件箱页）
	roleFilter := model.Role(c.Query("role"))

	conversations := h.engine.Conversations(principalID)

	list := make([]gin.H, 0, len(conversations))
	for _, conv := range conversations {
		peer, _ := conv.Peer(principalID)
		if roleFilter.Valid() && peer.Role != roleFilter {
			continue
		}
		item := gin.H{
			"id":             conv.ID,
			"peer":           peer,
			"unread_count":   conv.UnreadFor(principalID),
			"last_active_at": conv.LastActiveAt.UnixMilli(),
		}
		if len(conv.Messages) > 0 {
			last := conv.Messages[len(conv.Messages)-1]
			item["last_message"] = last.Text
		}
		list = append(list, item)
	}

	response.Success(c, gin.H{
		"list":         list,
		"total_unread": h.engine.TotalUnread(principalID),
	})
}

// StartConversation 发起（或定位）与指定参与者的会话
// POST /api/v1/chat/conversations
func (h *ChatHandler) StartConversation(c *gin.Context) {
	principalID := middleware.GetPrincipalID(c)

	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, apperrors.CodeInvalidParams, err.Error())
		return
	}

	conv, err := h.engine.FindOrCreate(c.Request.Context(), principalID, req.PeerID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"id":             conv.ID,
		"participants":   conv.Participants,
		"last_active_at": conv.LastActiveAt.UnixMilli(),
	})
}

// SendMessage 发送消息
// POST /api/v1/chat/conversations/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	principalID := middleware.GetPrincipalID(c)

	conversationID, err := parseConversationID(c)
	if err != nil {
		response.ErrorWithMsg(c, apperrors.CodeInvalidParams, "invalid conversation id")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, apperrors.CodeInvalidParams, err.Error())
		return
	}

	msg, err := h.engine.Ingest(c.Request.Context(), conversationID, principalID, req.Text)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, msg)
}

// ListMessages 获取会话消息
// GET /api/v1/chat/conversations/:id/messages
func (h *ChatHandler) ListMessages(c *gin.Context) {
	principalID := middleware.GetPrincipalID(c)

	conversationID, err := parseConversationID(c)
	if err != nil {
		response.ErrorWithMsg(c, apperrors.CodeInvalidParams, "invalid conversation id")
		return
	}

	messages, err := h.engine.ListMessages(conversationID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	unread, err := h.engine.UnreadCount(conversationID, principalID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":         messages,
		"unread_count": unread,
	})
}

// MarkRead 标记会话已读
// POST /api/v1/chat/conversations/:id/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	principalID := middleware.GetPrincipalID(c)

	conversationID, err := parseConversationID(c)
	if err != nil {
		response.ErrorWithMsg(c, apperrors.CodeInvalidParams, "invalid conversation id")
		return
	}

	if err := h.engine.MarkConversationRead(c.Request.Context(), conversationID, principalID); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, nil)
}

// TotalUnread 获取未读总数
// GET /api/v1/chat/unread
func (h *ChatHandler) TotalUnread(c *gin.Context) {
	principalID := middleware.GetPrincipalID(c)

	response.Success(c, gin.H{
		"total_unread": h.engine.TotalUnread(principalID),
	})
}

// parseConversationID 解析路径中的会话ID
func parseConversationID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid conversation id")
	}
	return id, nil
}
