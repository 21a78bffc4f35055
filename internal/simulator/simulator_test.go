package simulator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/delivery"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/engine"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/identity"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/model"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/notify"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/store"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/task"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/pkg/snowflake"
)

// fakeScheduler 手动触发的调度器
type fakeScheduler struct {
	mu    sync.Mutex
	tasks map[string]*task.Task
	order []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: make(map[string]*task.Task)}
}

func (f *fakeScheduler) Schedule(t *task.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[t.ID]; !ok {
		f.order = append(f.order, t.ID)
	}
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeScheduler) Cancel(taskID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[taskID]; !ok {
		return false
	}
	delete(f.tasks, taskID)
	return true
}

// fireSim 触发第一个模拟器回复任务
func (f *fakeScheduler) fireSim() (*task.Task, bool) {
	f.mu.Lock()
	var fired *task.Task
	for _, id := range f.order {
		if t, ok := f.tasks[id]; ok && strings.HasPrefix(id, "sim:") {
			fired = t
			delete(f.tasks, id)
			break
		}
	}
	f.mu.Unlock()

	if fired == nil {
		return nil, false
	}
	fired.Execute(context.Background())
	return fired, true
}

func (f *fakeScheduler) simTaskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for id := range f.tasks {
		if strings.HasPrefix(id, "sim:") {
			count++
		}
	}
	return count
}

var (
	tutor = model.Principal{ID: 1, DisplayName: "王老师", Role: model.RoleTutor}
	bot   = model.Principal{ID: 9001, DisplayName: "学习助手", Role: model.RoleStudent}
)

func newTestSetup(t *testing.T) (*engine.Engine, *fakeScheduler, *Simulator) {
	t.Helper()

	st := store.NewConversationStore(snowflake.NewNode(1), store.NewClock())
	dispatcher := notify.NewDispatcher()
	sched := newFakeScheduler()
	machine := delivery.NewMachine(sched, st, dispatcher, 1, 2)
	provider := identity.NewStaticProvider(tutor, bot)
	eng := engine.New(st, machine, dispatcher, provider)

	sim := New(eng, sched, bot, 2, 6, 42)
	eng.Subscribe(sim)

	return eng, sched, sim
}

func TestSimulator_SchedulesReplyForItsMessages(t *testing.T) {
	eng, sched, _ := newTestSetup(t)
	ctx := context.Background()

	conv, _ := eng.FindOrCreate(ctx, tutor.ID, bot.ID)

	if _, err := eng.Ingest(ctx, conv.ID, tutor.ID, "你好"); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if count := sched.simTaskCount(); count != 1 {
		t.Fatalf("期望 1 个回复任务, 实际 %d", count)
	}
}

func TestSimulator_ReplyGoesThroughIngest(t *testing.T) {
	eng, sched, _ := newTestSetup(t)
	ctx := context.Background()

	conv, _ := eng.FindOrCreate(ctx, tutor.ID, bot.ID)
	eng.Ingest(ctx, conv.ID, tutor.ID, "你好")

	fired, ok := sched.fireSim()
	if !ok {
		t.Fatal("没有可触发的回复任务")
	}
	if fired.Delay < 2 || fired.Delay > 6 {
		t.Errorf("回复延迟应在 [2,6] 区间, 实际 %d", fired.Delay)
	}

	// 回复与真人消息走同一路径：已追加、状态为 sent、有自己的投递定时器
	messages, _ := eng.ListMessages(conv.ID)
	if len(messages) != 2 {
		t.Fatalf("期望 2 条消息, 实际 %d", len(messages))
	}

	reply := messages[1]
	if reply.SenderID != bot.ID {
		t.Errorf("回复发送者应为模拟参与者, 实际 %d", reply.SenderID)
	}
	if reply.Status != model.StatusSent {
		t.Errorf("回复初始状态应为 sent, 实际 %s", reply.Status)
	}
	if strings.TrimSpace(reply.Text) == "" {
		t.Error("回复内容不应为空")
	}

	// 回复自身的投递定时器已调度
	deliveredID := delivery.TaskID(conv.ID, reply.ID, model.StatusDelivered)
	if !sched.Cancel(deliveredID) {
		t.Error("回复消息应有自己的 delivered 定时器")
	}

	// 导师的未读数包含这条回复
	unread, _ := eng.UnreadCount(conv.ID, tutor.ID)
	if unread != 1 {
		t.Errorf("期望导师未读 1, 实际 %d", unread)
	}
}

func TestSimulator_IgnoresMessagesForOthers(t *testing.T) {
	_, sched, sim := newTestSetup(t)

	// 接收方不是模拟参与者
	sim.OnNewMessage(notify.NewMessageNotification{
		ConversationID: 1,
		RecipientID:    tutor.ID,
		SenderID:       bot.ID,
	})

	if count := sched.simTaskCount(); count != 0 {
		t.Errorf("发给他人的消息不应触发回复, 实际 %d 个任务", count)
	}
}

func TestSimulator_DoesNotReplyToItself(t *testing.T) {
	eng, sched, _ := newTestSetup(t)
	ctx := context.Background()

	conv, _ := eng.FindOrCreate(ctx, tutor.ID, bot.ID)
	eng.Ingest(ctx, conv.ID, tutor.ID, "你好")

	// 触发回复后，模拟器收到的是自己发出的消息通知（接收方是导师），不再回环
	sched.fireSim()

	if count := sched.simTaskCount(); count != 0 {
		t.Errorf("回复不应引发新的回复, 实际 %d 个任务", count)
	}
}

func TestSimulator_DelayBounds(t *testing.T) {
	st := store.NewConversationStore(snowflake.NewNode(1), store.NewClock())
	dispatcher := notify.NewDispatcher()
	sched := newFakeScheduler()
	machine := delivery.NewMachine(sched, st, dispatcher, 1, 2)
	eng := engine.New(st, machine, dispatcher, identity.NewStaticProvider(tutor, bot))

	// 非法区间回退到默认值
	sim := New(eng, sched, bot, 0, -1, 1)
	if sim.minDelay != 2 || sim.maxDelay != 2 {
		t.Errorf("期望默认区间 [2,2], 实际 [%d,%d]", sim.minDelay, sim.maxDelay)
	}

	for i := 0; i < 100; i++ {
		if d := sim.pickDelay(); d != 2 {
			t.Fatalf("固定区间应恒为 2, 实际 %d", d)
		}
	}

	sim2 := New(eng, sched, bot, 3, 5, 1)
	for i := 0; i < 100; i++ {
		if d := sim2.pickDelay(); d < 3 || d > 5 {
			t.Fatalf("延迟越界: %d", d)
		}
	}
}

func TestSimulator_PickReplyFromCorpus(t *testing.T) {
	_, _, sim := newTestSetup(t)

	corpus := make(map[string]bool, len(defaultReplies))
	for _, r := range defaultReplies {
		corpus[r] = true
	}

	for i := 0; i < 50; i++ {
		reply := sim.pickReply()
		if !corpus[reply] {
			t.Fatalf("回复不在语料中: %s", reply)
		}
	}
}

func TestSimulator_TaskIDPerMessage(t *testing.T) {
	_, sched, sim := newTestSetup(t)

	// 不同消息产生不同的任务，同一毫秒到达也互不覆盖
	sim.OnNewMessage(notify.NewMessageNotification{ConversationID: 7, MessageID: 100, RecipientID: bot.ID, Timestamp: 555})
	sim.OnNewMessage(notify.NewMessageNotification{ConversationID: 7, MessageID: 101, RecipientID: bot.ID, Timestamp: 555})

	if count := sched.simTaskCount(); count != 2 {
		t.Errorf("期望 2 个独立回复任务, 实际 %d", count)
	}
	if !sched.Cancel(fmt.Sprintf("sim:%d:%d", 7, 100)) {
		t.Error("期望存在 sim:7:100 任务")
	}
}

func TestSimulator_RapidMessagesEachGetReply(t *testing.T) {
	eng, sched, _ := newTestSetup(t)
	ctx := context.Background()

	conv, _ := eng.FindOrCreate(ctx, tutor.ID, bot.ID)

	// 连发两条（几乎必然落在同一毫秒内）
	eng.Ingest(ctx, conv.ID, tutor.ID, "第一条")
	eng.Ingest(ctx, conv.ID, tutor.ID, "第二条")

	if count := sched.simTaskCount(); count != 2 {
		t.Fatalf("期望每条消息各有一条回复任务, 实际 %d", count)
	}

	// 两条回复都会注入
	sched.fireSim()
	sched.fireSim()

	messages, _ := eng.ListMessages(conv.ID)
	replies := 0
	for _, m := range messages {
		if m.SenderID == bot.ID {
			replies++
		}
	}
	if replies != 2 {
		t.Errorf("期望 2 条回复, 实际 %d", replies)
	}
}
