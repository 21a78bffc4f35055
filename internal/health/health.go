package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// probeTimeout 单个依赖的探测超时
const probeTimeout = 2 * time.Second

// Component 单个依赖的健康详情
type Component struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// Status 服务健康状态
// 引擎状态在内存中自洽，健康与否取决于三个外部依赖：
// NATS（事件出口）、Redis（会话镜像）、PostgreSQL（身份与归档）
type Status struct {
	Healthy   bool      `json:"healthy"`
	NATS      Component `json:"nats"`
	Redis     Component `json:"redis"`
	Database  Component `json:"database"`
	CheckedAt int64     `json:"checkedAt"`
}

// Checker 健康检查器
type Checker struct {
	nc          *nats.Conn
	redisClient *redis.Client
	db          *pgxpool.Pool
}

// NewChecker 创建健康检查器
func NewChecker(nc *nats.Conn, redisClient *redis.Client, db *pgxpool.Pool) *Checker {
	return &Checker{
		nc:          nc,
		redisClient: redisClient,
		db:          db,
	}
}

// Check 执行健康检查
// 逐个探测依赖并带上失败原因，汇总为整体健康位
func (h *Checker) Check(ctx context.Context) *Status {
	status := &Status{CheckedAt: time.Now().UnixMilli()}

	// NATS：事件出口
	if h.nc.IsConnected() {
		status.NATS.Healthy = true
	} else {
		status.NATS.Error = "not connected"
	}

	// Redis：会话镜像
	redisCtx, redisCancel := context.WithTimeout(ctx, probeTimeout)
	defer redisCancel()

	if err := h.redisClient.Ping(redisCtx).Err(); err != nil {
		status.Redis.Error = err.Error()
	} else {
		status.Redis.Healthy = true
	}

	// PostgreSQL：身份与消息归档
	dbCtx, dbCancel := context.WithTimeout(ctx, probeTimeout)
	defer dbCancel()

	if err := h.db.Ping(dbCtx); err != nil {
		status.Database.Error = err.Error()
	} else {
		status.Database.Healthy = true
	}

	status.Healthy = status.NATS.Healthy && status.Redis.Healthy && status.Database.Healthy
	return status
}

// IsHealthy 检查是否健康
func (h *Checker) IsHealthy(ctx context.Context) bool {
	return h.Check(ctx).Healthy
}

// ServeHTTP HTTP 健康检查端点
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if status.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(status)
}
