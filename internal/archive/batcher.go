package archive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/model"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/notify"
)

// BatcherConfig 批量写入配置
type BatcherConfig struct {
	BatchSize     int           // 批量大小阈值
	FlushInterval time.Duration // 强制刷新间隔
}

// MessageBatcher 消息归档批量写入器
// 订阅会话变更信号，把新追加的消息异步批量落库；
// 落库与否不影响引擎的会话期状态（引擎内存为权威）
type MessageBatcher struct {
	db       *pgxpool.Pool
	config   BatcherConfig
	msgChan  chan model.Message
	logger   *slog.Logger
	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMessageBatcher 创建消息归档批量写入器
func NewMessageBatcher(db *pgxpool.Pool, config BatcherConfig) *MessageBatcher {
	// 设置默认值
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}

	return &MessageBatcher{
		db:       db,
		config:   config,
		msgChan:  make(chan model.Message, config.BatchSize*10),
		logger:   slog.Default(),
		stopChan: make(chan struct{}),
	}
}

// Start 启动批量写入器
func (b *MessageBatcher) Start() {
	b.wg.Add(1)
	go b.worker()
	b.logger.Info("MessageBatcher started",
		"batchSize", b.config.BatchSize,
		"flushInterval", b.config.FlushInterval)
}

// Stop 停止批量写入器并刷掉剩余消息
func (b *MessageBatcher) Stop() {
	close(b.stopChan)
	b.wg.Wait()
	b.logger.Info("MessageBatcher stopped")
}

// OnConversationUpdated 追加消息引起的变更入队归档
func (b *MessageBatcher) OnConversationUpdated(u notify.ConversationUpdate) {
	if u.Appended == nil {
		return
	}

	select {
	case b.msgChan <- *u.Appended:
		// 入队成功
	default:
		// 队列满，丢弃并告警（归档是尽力而为）
		b.logger.Warn("Archive queue full, message dropped",
			"messageId", u.Appended.ID)
	}
}

// OnNewMessage 归档只消费会话变更信号
func (b *MessageBatcher) OnNewMessage(n notify.NewMessageNotification) {}

// OnChatReady 归档不关心就绪通知
func (b *MessageBatcher) OnChatReady(n notify.ChatReadyNotice) {}

// worker 后台工作协程
func (b *MessageBatcher) worker() {
	defer b.wg.Done()

	batch := make([]model.Message, 0, b.config.BatchSize)
	ticker := time.NewTicker(b.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-b.msgChan:
			batch = append(batch, msg)
			if len(batch) >= b.config.BatchSize {
				b.flush(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				b.flush(batch)
				batch = batch[:0]
			}

		case <-b.stopChan:
			// 排空通道后退出
			for {
				select {
				case msg := <-b.msgChan:
					batch = append(batch, msg)
				default:
					if len(batch) > 0 {
						b.flush(batch)
					}
					return
				}
			}
		}
	}
}

// flush 批量写入数据库
func (b *MessageBatcher) flush(batch []model.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pgxBatch := &pgx.Batch{}
	for _, msg := range batch {
		pgxBatch.Queue(
			`INSERT INTO dm_messages (id, conversation_id, sender_id, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO NOTHING`,
			msg.ID,
			msg.ConversationID,
			msg.SenderID,
			msg.Text,
			msg.CreatedAt,
		)
	}

	results := b.db.SendBatch(ctx, pgxBatch)
	defer results.Close()

	for range batch {
		if _, err := results.Exec(); err != nil {
			b.logger.Error("Failed to archive message batch", "error", err)
			return
		}
	}

	b.logger.Debug("Archived message batch", "count", len(batch))
}
