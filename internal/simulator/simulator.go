package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/delivery"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/engine"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/model"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/notify"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/task"
)

// defaultReplies 固定的自动回复语料
var defaultReplies = []string{
	"好的，收到！",
	"明白了，我看一下再回复你。",
	"这个问题问得好，我们下节课展开讲。",
	"可以的，就按这个时间。",
	"辛苦啦，今天先到这里。",
	"我这边没问题，你继续。",
	"稍等，我查一下资料。",
	"嗯嗯，继续保持！",
}

// Simulator 对端自动回复模拟器
// 订阅新消息通知，延迟后通过与真人相同的 Ingest 入口注入回复；
// 引擎无法也不需要区分消息来源
type Simulator struct {
	engine    *engine.Engine
	sched     delivery.Scheduler
	principal model.Principal
	replies   []string
	minDelay  int // 秒
	maxDelay  int // 秒
	mu        sync.Mutex
	rnd       *rand.Rand
	logger    *slog.Logger
}

// New 创建模拟器
func New(eng *engine.Engine, sched delivery.Scheduler, principal model.Principal, minDelay, maxDelay int, seed int64) *Simulator {
	if minDelay <= 0 {
		minDelay = 2
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}

	return &Simulator{
		engine:    eng,
		sched:     sched,
		principal: principal,
		replies:   defaultReplies,
		minDelay:  minDelay,
		maxDelay:  maxDelay,
		rnd:       rand.New(rand.NewSource(seed)),
		logger:    slog.Default(),
	}
}

// OnNewMessage 收到发给模拟参与者的消息时，调度一条延迟回复
func (s *Simulator) OnNewMessage(n notify.NewMessageNotification) {
	if n.RecipientID != s.principal.ID {
		return
	}

	reply := s.pickReply()
	delay := s.pickDelay()
	conversationID := n.ConversationID

	// 以消息ID为键：同一毫秒的连续消息也各自得到一条回复
	replyTask := task.NewTask(
		fmt.Sprintf("sim:%d:%d", conversationID, n.MessageID),
		fmt.Sprintf("conversation:%d", conversationID),
		delay,
		func(ctx context.Context) error {
			_, err := s.engine.Ingest(ctx, conversationID, s.principal.ID, reply)
			return err
		},
	)

	if err := s.sched.Schedule(replyTask); err != nil {
		s.logger.Warn("Failed to schedule simulated reply",
			"conversationId", conversationID,
			"error", err)
		return
	}

	s.logger.Debug("Simulated reply scheduled",
		"conversationId", conversationID,
		"delay", delay)
}

// OnChatReady 模拟器不关心就绪通知
func (s *Simulator) OnChatReady(n notify.ChatReadyNotice) {}

// OnConversationUpdated 模拟器不关心状态变更
func (s *Simulator) OnConversationUpdated(u notify.ConversationUpdate) {}

// pickReply 从语料中随机选一条回复
func (s *Simulator) pickReply() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.replies[s.rnd.Intn(len(s.replies))]
}

// pickDelay 在配置区间内随机选一个延迟
func (s *Simulator) pickDelay() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxDelay == s.minDelay {
		return s.minDelay
	}
	return s.minDelay + s.rnd.Intn(s.maxDelay-s.minDelay+1)
}
