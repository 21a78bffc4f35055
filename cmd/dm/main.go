package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/archive"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/config"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/delivery"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/engine"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/handler"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/health"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/identity"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/mirror"
	dmNats "github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/nats"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/notify"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/router"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/simulator"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/store"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/internal/task"
	"github.com/Avadeshsharma67/edvix-learniverse-sub000/pkg/snowflake"
)

func main() {
	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// 加载配置
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接 NATS
	natsClient, err := dmNats.NewClient(cfg.NATS)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	logger.Info("Connected to NATS", "url", cfg.NATS.URL)

	// 连接 Redis
	redisClient := connectRedis(cfg.Redis)
	defer redisClient.Close()
	logger.Info("Connected to Redis", "host", cfg.Redis.Host)

	// 连接数据库
	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

	// 初始化引擎组件
	sf := snowflake.NewNode(cfg.App.NodeID)
	conversationStore := store.NewConversationStore(sf, store.NewClock())
	dispatcher := notify.NewDispatcher()

	scheduler := task.NewScheduler(cfg.Delivery.WorkerCount)
	if err := scheduler.Start(); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	machine := delivery.NewMachine(scheduler, conversationStore, dispatcher,
		cfg.Delivery.DeliveredAfter, cfg.Delivery.ReadAfter)

	provider := identity.NewPgProvider(db)
	eng := engine.New(conversationStore, machine, dispatcher, provider)

	// 出站事件订阅者
	eng.Subscribe(dmNats.NewEventPublisher(natsClient.Conn()))
	eng.Subscribe(mirror.NewConversationMirror(redisClient))

	batcher := archive.NewMessageBatcher(db, archive.BatcherConfig{})
	batcher.Start()
	defer batcher.Stop()
	eng.Subscribe(batcher)

	// 对端自动回复模拟器
	if cfg.Simulator.Enabled {
		principal, err := provider.Principal(ctx, cfg.Simulator.PrincipalID)
		if err != nil {
			logger.Warn("Simulator principal not found, simulator disabled",
				"principalId", cfg.Simulator.PrincipalID, "error", err)
		} else {
			sim := simulator.New(eng, scheduler, principal,
				cfg.Simulator.MinDelay, cfg.Simulator.MaxDelay, time.Now().UnixNano())
			eng.Subscribe(sim)
			logger.Info("Peer-response simulator enabled", "principalId", principal.ID)
		}
	}

	// HTTP API
	tokenService := identity.NewTokenService(cfg.JWT.Secret, cfg.JWT.Expire)
	chatHandler := handler.NewChatHandler(eng)
	r := router.SetupRouter(cfg, tokenService, chatHandler)

	apiServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: r,
	}

	go func() {
		logger.Info("DM API server started", "addr", cfg.HTTP.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server failed", "error", err)
		}
	}()

	// 健康检查 HTTP 服务
	healthChecker := health.NewChecker(natsClient.Conn(), redisClient, db)
	go startHealthServer(cfg.HTTP.HealthAddr, healthChecker, logger)

	logger.Info("DM service started", "name", cfg.App.Name)

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", "error", err)
	}

	cancel()
	logger.Info("DM service stopped")
}

// startHealthServer 启动健康检查 HTTP 服务
func startHealthServer(addr string, healthChecker *health.Checker, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/health", healthChecker)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if healthChecker.IsHealthy(r.Context()) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Not Ready"))
		}
	})

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	logger.Info("Health check server started", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Health check server failed", "error", err)
	}
}

// connectRedis 连接 Redis
func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// connectDatabase 连接 PostgreSQL
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolConfig)
}
