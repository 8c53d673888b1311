package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"payoutledger/internal/auth"
	"payoutledger/internal/config"
	"payoutledger/internal/handler"
	"payoutledger/internal/infrastructure/cache"
	"payoutledger/internal/infrastructure/database"
	"payoutledger/internal/infrastructure/lock"
	"payoutledger/internal/infrastructure/mq"
	"payoutledger/internal/job"
	"payoutledger/internal/logger"
	"payoutledger/internal/repository"
	"payoutledger/internal/repository/memory"
	"payoutledger/internal/service"
	"payoutledger/pkg/idgen"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func main() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "config/config.yaml"
	}
	configPath := flag.String("config", defaultPath, "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Console: cfg.Log.Console})
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("服务异常退出")
	}
}

func openStore(cfg *config.Config, log zerolog.Logger) (repository.Store, func(), error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("使用内存存储，重启后数据丢失")
		return memory.New(memory.WithLockTimeout(cfg.Business.LockTimeout)), func() {}, nil
	}

	db, err := database.Open(cfg, logger.Component(log, "database"))
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("关闭数据库失败")
		}
	}
	return repository.NewGormStore(db, cfg.Business.LockTimeout), closeFn, nil
}

func run(cfg *config.Config, log zerolog.Logger) error {
	// 初始化 ID 生成器
	if err := idgen.Init(cfg.Server.NodeID); err != nil {
		return fmt.Errorf("初始化 ID 生成器失败: %w", err)
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis 未启用时只依赖数据库行锁
	var locker service.EmployeeLocker
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(ctx, &cfg.Redis, log)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		locker = lock.NewEmployeeLocker(redisClient, cfg.Redis.LockTTL, cfg.Business.LockTimeout)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	ledger := service.NewWalletLedger(cfg, log)
	projects := service.NewProjectService(store, cfg, ledger, log)
	employees := service.NewEmployeeService(store, cfg, ledger, tokens, log)

	// 确保至少有一个管理员可以登录
	if _, err := employees.EnsureAdmin(ctx, cfg.Auth.BootstrapAdmin); err != nil {
		return fmt.Errorf("初始化管理员失败: %w", err)
	}

	h := handler.NewHandler(handler.Services{
		Employees:   employees,
		Projects:    projects,
		Withdrawals: service.NewWithdrawalService(store, cfg, ledger, locker, log),
		Queries:     service.NewQueryService(store, cfg, log),
	}, log)

	// 启动后台任务
	deadlineMonitor := job.NewDeadlineMonitor(projects, cfg, log)
	go deadlineMonitor.Start(ctx)

	// Kafka 未启用时消息保留在 outbox 表中
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(&cfg.Kafka, log)
		if err != nil {
			return err
		}
		defer producer.Close()
		outboxSender := job.NewOutboxSender(store, producer, cfg, log)
		go outboxSender.Start(ctx)
	}

	// 设置路由
	gin.SetMode(gin.ReleaseMode)
	router := handler.SetupRouter(h, tokens, log)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
	}).Handler(router)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: corsHandler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("storage", cfg.Storage.Driver).Msg("服务启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	log.Info().Msg("正在关闭服务...")

	// 关闭 HTTP 服务
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("服务关闭异常")
	}

	log.Info().Msg("服务已关闭")
	return nil
}
