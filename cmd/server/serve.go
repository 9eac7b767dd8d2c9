package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nft-sage-go/internal/channel"
	"nft-sage-go/internal/config"
	"nft-sage-go/internal/handler"
	"nft-sage-go/internal/intent"
	"nft-sage-go/internal/memory"
	"nft-sage-go/internal/middleware"
	"nft-sage-go/internal/model"
	"nft-sage-go/internal/repository"
	"nft-sage-go/internal/scheduler"
	"nft-sage-go/internal/service"
	"nft-sage-go/pkg/analytics"
	"nft-sage-go/pkg/database"
	"nft-sage-go/pkg/es"
	"nft-sage-go/pkg/kafka"
	"nft-sage-go/pkg/llm"
	"nft-sage-go/pkg/log"
	"nft-sage-go/pkg/storage"
	"nft-sage-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func runServe(_ *cobra.Command, _ []string) error {
	// 1. 初始化配置
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Infof("nft-sage %s 启动中", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 初始化可选的外部组件，未配置的组件保持为 nil
	deps, closeDeps, err := initConversationDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDeps()

	// 4. 初始化 Service (依赖注入)
	store := memory.New(memoryOptions(cfg.Memory))
	conversationService := service.NewConversationService(store, deps)
	if n, err := conversationService.Warm(ctx); err != nil {
		log.Errorw("从归档恢复会话失败，以空记忆启动", "error", err)
	} else if n > 0 {
		log.Infof("已恢复 %d 个会话", n)
	}

	classifier, err := intent.New(cfg.Intent, cfg.LLM)
	if err != nil {
		return err
	}
	provider, err := analytics.New(cfg.Analytics)
	if err != nil {
		return err
	}
	llmClient := llm.NewClient(cfg.LLM)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)

	chatService := service.NewChatService(classifier, conversationService, provider, llmClient, cfg.LLM, cfg.Memory)
	analysisService := service.NewAnalysisService(provider, conversationService, llmClient, cfg.LLM, cfg.Memory)
	authService := service.NewAuthService(cfg.Admin, jwtManager)

	// 5. 启动后台 Kafka 复制消费者
	if cfg.Kafka.Brokers != "" && cfg.Kafka.Replicate {
		consumer := kafka.NewConsumer(cfg.Kafka, origin, conversationService)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Errorw("Kafka 消费者退出", "error", err)
			}
		}()
	}

	// 6. 定期清理
	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	var pruner scheduler.Pruner
	if limiter != nil {
		pruner = limiter
	}
	sched := scheduler.New(cfg.Memory.SweepSchedule, cfg.Memory.MaxAge, conversationService, pruner)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	// 7. 聊天机器人
	bots, err := initChannels(cfg, chatService, analysisService, conversationService)
	if err != nil {
		return err
	}
	if err := bots.StartAll(ctx); err != nil {
		return err
	}
	defer bots.StopAll()

	// 8. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := newRouter(routes{
		jwt:           jwtManager,
		limiter:       limiter,
		chat:          handler.NewChatHandler(chatService),
		conversations: handler.NewConversationHandler(conversationService),
		analysis:      handler.NewAnalysisHandler(analysisService),
		auth:          handler.NewAuthHandler(authService),
		admin:         handler.NewAdminHandler(conversationService),
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("接收到停机信号，正在关闭服务...")
	case err := <-errCh:
		return fmt.Errorf("HTTP 服务监听失败: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("HTTP 服务器关闭失败", "error", err)
	}
	log.Info("服务已优雅关闭")
	return nil
}

// origin 标识本实例，Kafka 消费者据此跳过自己发布的事件。
var origin = func() string {
	host, _ := os.Hostname()
	return host + "-" + uuid.NewString()[:8]
}()

func memoryOptions(c config.MemoryConfig) memory.Options {
	opts := memory.DefaultOptions()
	if c.Cap > 0 {
		opts.Cap = c.Cap
	}
	if len(c.Topics) > 0 {
		opts.Topics = c.Topics
	}
	if len(c.ConservativeKeywords) > 0 {
		opts.ConservativeKeywords = c.ConservativeKeywords
	}
	if len(c.AggressiveKeywords) > 0 {
		opts.AggressiveKeywords = c.AggressiveKeywords
	}
	return opts
}

// initConversationDeps 连接 Redis、MySQL、Elasticsearch、Kafka 与 MinIO 中已配置的部分。
// 外部组件不可用时启动失败，未配置时对应功能关闭。
func initConversationDeps(ctx context.Context, cfg config.Config) (service.ConversationDeps, func(), error) {
	var (
		deps    service.ConversationDeps
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (service.ConversationDeps, func(), error) {
		closeAll()
		return service.ConversationDeps{}, func() {}, err
	}

	if cfg.Database.Redis.Addr != "" {
		rdb, err := database.InitRedis(ctx, cfg.Database.Redis)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		deps.Archive = repository.NewConversationRepository(rdb, cfg.Database.Redis.ArchiveTTL)
		log.Info("Redis 会话归档已启用")
	}
	if cfg.Database.MySQL.DSN != "" {
		db, err := database.InitMySQL(cfg.Database.MySQL.DSN, &model.Transcript{})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		})
		deps.Transcripts = repository.NewTranscriptRepository(db)
		log.Info("MySQL 问答审计已启用")
	}
	if cfg.Elasticsearch.Addresses != "" {
		indexer, err := es.NewIndexer(cfg.Elasticsearch)
		if err != nil {
			return fail(err)
		}
		deps.Indexer = indexer
		log.Info("Elasticsearch 交互索引已启用")
	}
	if cfg.Kafka.Brokers != "" {
		producer := kafka.NewProducer(cfg.Kafka, origin)
		closers = append(closers, func() { _ = producer.Close() })
		deps.Publisher = producer
		log.Info("Kafka 交互事件发布已启用")
	}
	if cfg.MinIO.Endpoint != "" {
		objects, err := storage.NewObjectStore(ctx, cfg.MinIO)
		if err != nil {
			return fail(err)
		}
		deps.Exporter = objects
		log.Info("MinIO 快照导出已启用")
	}
	return deps, closeAll, nil
}

func initChannels(cfg config.Config, chat service.ChatService, analysis service.AnalysisService,
	conversations service.ConversationService) (*channel.Manager, error) {
	var chans []channel.Channel
	if cfg.Telegram.Enabled {
		router := channel.NewRouter(model.PlatformTelegram, "/", chat, analysis, conversations)
		tg, err := channel.NewTelegramChannel(cfg.Telegram, router)
		if err != nil {
			return nil, err
		}
		chans = append(chans, tg)
	}
	if cfg.Discord.Enabled {
		router := channel.NewRouter(model.PlatformDiscord, cfg.Discord.Prefix, chat, analysis, conversations)
		dc, err := channel.NewDiscordChannel(cfg.Discord, router)
		if err != nil {
			return nil, err
		}
		chans = append(chans, dc)
	}
	return channel.NewManager(chans...), nil
}
