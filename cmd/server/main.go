// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calling-journal-go/internal/config"
	"calling-journal-go/internal/handler"
	"calling-journal-go/internal/middleware"
	"calling-journal-go/internal/model"
	"calling-journal-go/internal/pipeline"
	"calling-journal-go/internal/repository"
	"calling-journal-go/internal/service"
	"calling-journal-go/pkg/database"
	"calling-journal-go/pkg/es"
	"calling-journal-go/pkg/kafka"
	"calling-journal-go/pkg/llm"
	"calling-journal-go/pkg/log"
	"calling-journal-go/pkg/storage"
	"calling-journal-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储与搜索
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.DB.AutoMigrate(&model.User{}, &model.JournalEntry{}, &model.ChatSession{}, &model.ChatMessage{}); err != nil {
		log.Fatal("数据库迁移失败", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	entryRepo := repository.NewEntryRepository(database.DB)
	chatRepo := repository.NewChatRepository(database.DB)
	bindingRepo := repository.NewSessionBindingRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	llmClient := llm.NewClient(cfg.LLM)
	objectStore := storage.NewObjectStore(cfg.MinIO.BucketName)
	userService := service.NewUserService(userRepo, jwtManager)
	entryService := service.NewEntryService(entryRepo, objectStore, kafka.ProduceEntryTask)
	searchService := service.NewSearchService(es.ESClient, cfg.Elasticsearch.IndexName)
	chatService := service.NewChatService(chatRepo, bindingRepo, llmClient, cfg.LLM.Prompt.Rules)

	// 6. 启动后台 Kafka 消费者，把条目镜像到搜索索引
	indexer := pipeline.NewIndexer(entryRepo, cfg.Elasticsearch)
	go kafka.StartConsumer(cfg.Kafka, indexer)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	userHandler := handler.NewUserHandler(userService)
	entryHandler := handler.NewEntryHandler(entryService, searchService)
	chatHandler := handler.NewChatHandler(chatService)

	// 无需认证的路由 (公开访问)
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Calling Journal API"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.POST("/register", userHandler.Register)
	r.POST("/token", userHandler.Token)

	// Entries 路由组，需要认证
	entries := r.Group("/entries")
	entries.Use(middleware.AuthMiddleware(jwtManager, userService))
	{
		entries.GET("/", entryHandler.List)
		entries.POST("/", entryHandler.Create)
		entries.GET("/search", entryHandler.Search)
		entries.GET("/:date", entryHandler.Get)
		entries.PUT("/:date", entryHandler.Update)
		entries.DELETE("/:date", entryHandler.Delete)
		entries.POST("/:date/audio", entryHandler.UploadAudio)
	}

	// Chat 路由组，需要认证
	chat := r.Group("/chat")
	chat.Use(middleware.AuthMiddleware(jwtManager, userService))
	{
		chat.GET("/sessions", chatHandler.ListSessions)
		chat.POST("/sessions", chatHandler.CreateSession)
		chat.DELETE("/sessions/:sessionId", chatHandler.DeleteSession)
		chat.GET("/bindings/:date", chatHandler.BindSession)
		chat.POST("/:sessionId", chatHandler.SendMessage)
		chat.GET("/:sessionId/messages", chatHandler.GetMessages)
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
