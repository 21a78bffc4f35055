package store

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/apperrors"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/model"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/pkg/snowflake"
)

// pairKey 参与者对的无序键
type pairKey struct {
	lo, hi int64
}

func newPairKey(a, b int64) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// ConversationStore 会话存储
// 引擎内唯一的可变共享资源，所有写操作经同一把锁串行化；
// 派生状态（未读数）在同一锁内计算，外部不可能观测到不一致瞬间
type ConversationStore struct {
	mu     sync.Mutex
	convs  map[int64]*model.Conversation
	pairs  map[pairKey]int64
	sf     *snowflake.Node
	clock  *Clock
	logger *slog.Logger
}

// NewConversationStore 创建会话存储
func NewConversationStore(sf *snowflake.Node, clock *Clock) *ConversationStore {
	return &ConversationStore{
		convs:  make(map[int64]*model.Conversation),
		pairs:  make(map[pairKey]int64),
		sf:     sf,
		clock:  clock,
		logger: slog.Default(),
	}
}

// FindOrCreate 查找或创建两人会话
// 同一对参与者（无序）至多存在一个会话，并发调用返回同一个会话
func (s *ConversationStore) FindOrCreate(a, b model.Principal) (*model.Conversation, bool, error) {
	if a.ID == b.ID {
		return nil, false, apperrors.ErrInvalidParams
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := newPairKey(a.ID, b.ID)
	if id, ok := s.pairs[key]; ok {
		return s.convs[id].Clone(), false, nil
	}

	conv := &model.Conversation{
		ID:           s.sf.Generate().Int64(),
		Participants: [2]model.Principal{a, b},
		Messages:     make([]model.Message, 0, 8),
		LastActiveAt: s.clock.Now(),
	}
	s.convs[conv.ID] = conv
	s.pairs[key] = conv.ID

	s.logger.Debug("Conversation created",
		"conversationId", conv.ID,
		"participantA", a.ID,
		"participantB", b.ID)

	return conv.Clone(), true, nil
}

// Append 追加消息到会话尾部
// 校验通过后分配新ID与单调时间戳，初始状态 sent；
// 失败时存储状态不变
func (s *ConversationStore) Append(conversationID, senderID int64, text string) (model.Message, *model.Conversation, error) {
	if strings.TrimSpace(text) == "" {
		return model.Message{}, nil, apperrors.ErrInvalidMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return model.Message{}, nil, apperrors.ErrUnknownConversation
	}
	if !conv.HasParticipant(senderID) {
		return model.Message{}, nil, apperrors.ErrNotAParticipant
	}

	msg := model.Message{
		ID:             s.sf.Generate().Int64(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      s.clock.Now(),
		Status:         model.StatusSent,
	}
	conv.Messages = append(conv.Messages, msg)
	conv.LastActiveAt = msg.CreatedAt

	return msg, conv.Clone(), nil
}

// AdvanceStatus 定时器驱动的状态推进
// 仅允许推进到当前状态的直接后继（sent->delivered, delivered->read），
// 其余情况（包括会话或消息不存在、状态已越过目标）静默丢弃；
// 返回是否发生变化以及变化后的会话快照
func (s *ConversationStore) AdvanceStatus(conversationID, messageID int64, target model.MessageStatus) (bool, *model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		s.logger.Debug("Dropped status advance for unknown conversation",
			"conversationId", conversationID,
			"messageId", messageID)
		return false, nil
	}

	for i := range conv.Messages {
		m := &conv.Messages[i]
		if m.ID != messageID {
			continue
		}
		if target != m.Status+1 {
			// 迟到或重复的定时器回调，按当前状态判定为无操作
			return false, nil
		}
		m.Status = target
		return true, conv.Clone()
	}

	s.logger.Debug("Dropped status advance for unknown message",
		"conversationId", conversationID,
		"messageId", messageID)
	return false, nil
}

// MarkConversationRead 批量标记已读
// 将对端发送且未读的消息置为 read，返回受影响的消息ID；
// 操作期间持锁，与并发 Append 互斥（中途追加的消息不在本次快照内）
func (s *ConversationStore) MarkConversationRead(conversationID, readerID int64) ([]int64, *model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, nil, apperrors.ErrUnknownConversation
	}
	if !conv.HasParticipant(readerID) {
		return nil, nil, apperrors.ErrNotAParticipant
	}

	var affected []int64
	for i := range conv.Messages {
		m := &conv.Messages[i]
		if m.SenderID != readerID && m.Status != model.StatusRead {
			m.Status = model.StatusRead
			affected = append(affected, m.ID)
		}
	}

	return affected, conv.Clone(), nil
}

// ListMessages 按插入序返回消息快照
func (s *ConversationStore) ListMessages(conversationID int64) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, apperrors.ErrUnknownConversation
	}

	messages := make([]model.Message, len(conv.Messages))
	copy(messages, conv.Messages)
	return messages, nil
}

// UnreadCount 指定会话中读者的未读数
func (s *ConversationStore) UnreadCount(conversationID, readerID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return 0, apperrors.ErrUnknownConversation
	}
	if !conv.HasParticipant(readerID) {
		return 0, apperrors.ErrNotAParticipant
	}

	return conv.UnreadFor(readerID), nil
}

// TotalUnread 读者在所有会话中的未读总数
// 与逐会话 UnreadCount 之和在同一把锁下计算，二者恒等
func (s *ConversationStore) TotalUnread(readerID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, conv := range s.convs {
		if conv.HasParticipant(readerID) {
			total += conv.UnreadFor(readerID)
		}
	}
	return total
}

// Conversations 参与者的会话列表快照，按最近活跃时间倒序
func (s *ConversationStore) Conversations(principalID int64) []*model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*model.Conversation
	for _, conv := range s.convs {
		if conv.HasParticipant(principalID) {
			result = append(result, conv.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActiveAt.After(result[j].LastActiveAt)
	})

	return result
}

// Get 获取会话快照
func (s *ConversationStore) Get(conversationID int64) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, apperrors.ErrUnknownConversation
	}
	return conv.Clone(), nil
}
