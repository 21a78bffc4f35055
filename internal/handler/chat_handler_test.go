package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/apperrors"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/delivery"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/engine"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/identity"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/model"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/notify"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/store"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/task"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/pkg/response"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/pkg/snowflake"
)

// fakeScheduler 手动触发的调度器
type fakeScheduler struct {
	mu    sync.Mutex
	tasks map[string]*task.Task
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: make(map[string]*task.Task)}
}

func (f *fakeScheduler) Schedule(t *task.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
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

var (
	tutor   = model.Principal{ID: 1, DisplayName: "王老师", Role: model.RoleTutor}
	student = model.Principal{ID: 2, DisplayName: "小李", Role: model.RoleStudent}
)

// setupRouter 构造带假认证的测试路由
func setupRouter(t *testing.T) (*gin.Engine, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewConversationStore(snowflake.NewNode(1), store.NewClock())
	dispatcher := notify.NewDispatcher()
	machine := delivery.NewMachine(newFakeScheduler(), st, dispatcher, 1, 2)
	provider := identity.NewStaticProvider(tutor, student)
	eng := engine.New(st, machine, dispatcher, provider)

	h := NewChatHandler(eng)

	r := gin.New()
	chat := r.Group("/api/v1/chat")
	// 测试中用 header 直接注入参与者身份，跳过 JWT
	chat.Use(func(c *gin.Context) {
		var principalID int64
		fmt.Sscanf(c.GetHeader("X-Test-Principal"), "%d", &principalID)
		c.Set("principal_id", principalID)
		c.Next()
	})
	{
		chat.GET("/conversations", h.ListConversations)
		chat.POST("/conversations", h.StartConversation)
		chat.GET("/conversations/:id/messages", h.ListMessages)
		chat.POST("/conversations/:id/messages", h.SendMessage)
		chat.POST("/conversations/:id/read", h.MarkRead)
		chat.GET("/unread", h.TotalUnread)
	}

	return r, eng
}

func doRequest(r *gin.Engine, method, path string, principalID int64, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Principal", fmt.Sprintf("%d", principalID))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestStartConversation(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/chat/conversations", tutor.ID,
		gin.H{"peer_id": student.ID})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse(t, w)
	assert.Equal(t, apperrors.CodeSuccess, resp.Code)

	data := resp.Data.(map[string]interface{})
	assert.NotZero(t, data["id"])

	// 重复发起命中同一会话
	w2 := doRequest(r, http.MethodPost, "/api/v1/chat/conversations", student.ID,
		gin.H{"peer_id": tutor.ID})
	resp2 := parseResponse(t, w2)
	data2 := resp2.Data.(map[string]interface{})
	assert.Equal(t, data["id"], data2["id"])
}

func TestStartConversation_Validation(t *testing.T) {
	r, _ := setupRouter(t)

	// 缺少 peer_id
	w := doRequest(r, http.MethodPost, "/api/v1/chat/conversations", tutor.ID, gin.H{})
	resp := parseResponse(t, w)
	assert.Equal(t, apperrors.CodeInvalidParams, resp.Code)

	// 对端不存在
	w = doRequest(r, http.MethodPost, "/api/v1/chat/conversations", tutor.ID,
		gin.H{"peer_id": 999})
	resp = parseResponse(t, w)
	assert.Equal(t, apperrors.CodeUserNotFound, resp.Code)

	// 与自己会话
	w = doRequest(r, http.MethodPost, "/api/v1/chat/conversations", tutor.ID,
		gin.H{"peer_id": tutor.ID})
	resp = parseResponse(t, w)
	assert.Equal(t, apperrors.CodeInvalidParams, resp.Code)
}

func TestSendMessage(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/chat/conversations", tutor.ID,
		gin.H{"peer_id": student.ID})
	data := parseResponse(t, w).Data.(map[string]interface{})
	convID := int64(data["id"].(float64))

	w = doRequest(r, http.MethodPost,
		fmt.Sprintf("/api/v1/chat/conversations/%d/messages", convID), tutor.ID,
		gin.H{"text": "今天讲二次函数"})

	resp := parseResponse(t, w)
	require.Equal(t, apperrors.CodeSuccess, resp.Code)

	msg := resp.Data.(map[string]interface{})
	assert.Equal(t, "今天讲二次函数", msg["text"])
	assert.Equal(t, float64(tutor.ID), msg["senderId"])
}

func TestSendMessage_Validation(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/chat/conversations", tutor.ID,
		gin.H{"peer_id": student.ID})
	data := parseResponse(t, w).Data.(map[string]interface{})
	convID := int64(data["id"].(float64))

	// 非法会话ID
	w = doRequest(r, http.MethodPost, "/api/v1/chat/conversations/abc/messages", tutor.ID,
		gin.H{"text": "hi"})
	assert.Equal(t, apperrors.CodeInvalidParams, parseResponse(t, w).Code)

	// 缺少 text
	w = doRequest(r, http.MethodPost,
		fmt.Sprintf("/api/v1/chat/conversations/%d/messages", convID), tutor.ID, gin.H{})
	assert.Equal(t, apperrors.CodeInvalidParams, parseResponse(t, w).Code)

	// 非参与者发送
	w = doRequest(r, http.MethodPost,
		fmt.Sprintf("/api/v1/chat/conversations/%d/messages", convID), 999,
		gin.H{"text": "hi"})
	assert.Equal(t, apperrors.CodeNotAParticipant, parseResponse(t, w).Code)

	// 会话不存在
	w = doRequest(r, http.MethodPost, "/api/v1/chat/conversations/424242/messages", tutor.ID,
		gin.H{"text": "hi"})
	assert.Equal(t, apperrors.CodeUnknownConversation, parseResponse(t, w).Code)
}

func TestListMessagesAndUnread(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/chat/conversations", tutor.ID,
		gin.H{"peer_id": student.ID})
	data := parseResponse(t, w).Data.(map[string]interface{})
	convID := int64(data["id"].(float64))

	doRequest(r, http.MethodPost,
		fmt.Sprintf("/api/v1/chat/conversations/%d/messages", convID), tutor.ID,
		gin.H{"text": "第一条"})
	doRequest(r, http.MethodPost,
		fmt.Sprintf("/api/v1/chat/conversations/%d/messages", convID), tutor.ID,
		gin.H{"text": "第二条"})

	// 学员视角：两条未读
	w = doRequest(r, http.MethodGet,
		fmt.Sprintf("/api/v1/chat/conversations/%d/messages", convID), student.ID, nil)
	resp := parseResponse(t, w)
	require.Equal(t, apperrors.CodeSuccess, resp.Code)

	listData := resp.Data.(map[string]interface{})
	assert.Len(t, listData["list"], 2)
	assert.Equal(t, float64(2), listData["unread_count"])

	// 未读总数
	w = doRequest(r, http.MethodGet, "/api/v1/chat/unread", student.ID, nil)
	unreadData := parseResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, float64(2), unreadData["total_unread"])
}

func TestMarkRead(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/chat/conversations", tutor.ID,
		gin.H{"peer_id": student.ID})
	data := parseResponse(t, w).Data.(map[string]interface{})
	convID := int64(data["id"].(float64))

	doRequest(r, http.MethodPost,
		fmt.Sprintf("/api/v1/chat/conversations/%d/messages", convID), tutor.ID,
		gin.H{"text": "你好"})

	w = doRequest(r, http.MethodPost,
		fmt.Sprintf("/api/v1/chat/conversations/%d/read", convID), student.ID, nil)
	assert.Equal(t, apperrors.CodeSuccess, parseResponse(t, w).Code)

	w = doRequest(r, http.MethodGet, "/api/v1/chat/unread", student.ID, nil)
	unreadData := parseResponse(t, w).Data.(map[string]interface{})
	assert.Equal(t, float64(0), unreadData["total_unread"])

	// 重复标记仍成功
	w = doRequest(r, http.MethodPost,
		fmt.Sprintf("/api/v1/chat/conversations/%d/read", convID), student.ID, nil)
	assert.Equal(t, apperrors.CodeSuccess, parseResponse(t, w).Code)
}

func TestListConversations(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodPost, "/api/v1/chat/conversations", tutor.ID,
		gin.H{"peer_id": student.ID})
	data := parseResponse(t, w).Data.(map[string]interface{})
	convID := int64(data["id"].(float64))

	doRequest(r, http.MethodPost,
		fmt.Sprintf("/api/v1/chat/conversations/%d/messages", convID), tutor.ID,
		gin.H{"text": "你好"})

	w = doRequest(r, http.MethodGet, "/api/v1/chat/conversations", student.ID, nil)
	resp := parseResponse(t, w)
	require.Equal(t, apperrors.CodeSuccess, resp.Code)

	listData := resp.Data.(map[string]interface{})
	list := listData["list"].([]interface{})
	require.Len(t, list, 1)

	item := list[0].(map[string]interface{})
	assert.Equal(t, float64(1), item["unread_count"])
	assert.Equal(t, "你好", item["last_message"])
	assert.Equal(t, float64(1), listData["total_unread"])

	peer := item["peer"].(map[string]interface{})
	assert.Equal(t, float64(tutor.ID), peer["id"])
}

func TestListConversations_RoleFilter(t *testing.T) {
	r, _ := setupRouter(t)

	doRequest(r, http.MethodPost, "/api/v1/chat/conversations", student.ID,
		gin.H{"peer_id": tutor.ID})

	// 按对端角色筛选：学员视角下对端是导师
	w := doRequest(r, http.MethodGet, "/api/v1/chat/conversations?role=tutor", student.ID, nil)
	listData := parseResponse(t, w).Data.(map[string]interface{})
	assert.Len(t, listData["list"], 1)

	w = doRequest(r, http.MethodGet, "/api/v1/chat/conversations?role=student", student.ID, nil)
	listData = parseResponse(t, w).Data.(map[string]interface{})
	assert.Len(t, listData["list"], 0)
}

func TestListConversations_UnknownPrincipal(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(r, http.MethodGet, "/api/v1/chat/conversations", 999, nil)
	assert.Equal(t, apperrors.CodeUserNotFound, parseResponse(t, w).Code)
}
