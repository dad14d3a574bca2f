package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"mindwell-backend/internal/auth"
	"mindwell-backend/internal/config"
	"mindwell-backend/internal/handler"
	"mindwell-backend/internal/llm"
	"mindwell-backend/internal/ratelimit"
	"mindwell-backend/internal/service"
	"mindwell-backend/internal/session"
	"mindwell-backend/internal/storage"
	"mindwell-backend/pkg/logger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	store, notifier, err := buildStorage(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	listenCtx, stopListening := context.WithCancel(context.Background())
	defer stopListening()
	var summaryNotifier service.SummaryNotifier
	if notifier != nil {
		summaryNotifier = notifier
		watchSummaryUpdates(listenCtx, notifier, cfg.Storage.DSN)
	}

	llmClient := llm.NewOpenAIClient(cfg.OpenAI)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)
	}

	quick := session.NewCache(buildSlotStore(cfg), greeting(cfg))

	conversations := service.NewConversationService(store, cfg.Chat)
	summaries := service.NewSummaryService(store, llmClient, summaryNotifier)
	relay := service.NewRelayService(llmClient, conversations, limiter, quick, summaries, cfg.OpenAI.HistoryLimit)

	chatHandler := handler.NewChatHandler(conversations, relay, summaries, quick)
	verifier := auth.NewRemoteVerifier(cfg.Auth)

	router := setupRouter(cfg, chatHandler, verifier)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("Server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}

// watchSummaryUpdates subscribes to the summary NOTIFY channel and logs
// each update. Dashboards subscribe the same way on their own connection.
func watchSummaryUpdates(ctx context.Context, notifier *storage.Notifier, dsn string) {
	updates, err := notifier.Listen(ctx, dsn)
	if err != nil {
		logger.Errorf("Summary update listener failed to start: %v", err)
		return
	}
	go func() {
		for payload := range updates {
			logger.Infof("Daily summary updated: %s", payload)
		}
	}()
}

func buildStorage(cfg *config.Config) (storage.Storage, *storage.Notifier, error) {
	if cfg.Storage.Type != "postgres" {
		store := storage.NewMemoryStorage()
		return store, nil, store.Init()
	}

	db, err := sql.Open("postgres", cfg.Storage.DSN)
	if err != nil {
		return nil, nil, err
	}
	store := storage.NewPostgresStorage(db)
	if err := store.Init(); err != nil {
		return nil, nil, err
	}
	return store, storage.NewNotifier(db, "summary_updates"), nil
}

func buildSlotStore(cfg *config.Config) session.SlotStore {
	if cfg.Storage.DataDir == "" {
		return session.NewMemorySlotStore()
	}
	slots, err := session.NewDiskSlotStore(cfg.Storage.DataDir)
	if err != nil {
		logger.Errorf("Failed to init disk slot store, using memory: %v", err)
		return session.NewMemorySlotStore()
	}
	return slots
}

func greeting(cfg *config.Config) string {
	if cfg.Chat.Greeting != "" {
		return cfg.Chat.Greeting
	}
	return service.DefaultGreeting
}

func setupRouter(cfg *config.Config, chatHandler *handler.ChatHandler, verifier auth.Verifier) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("/api")
	api.Use(handler.AuthRequired(verifier))
	{
		chat := api.Group("/chat")
		{
			chat.POST("/send", chatHandler.SendMessage)
			chat.POST("/conversations", chatHandler.CreateConversation)
			chat.GET("/conversations", chatHandler.ListConversations)
			chat.GET("/conversations/grouped", chatHandler.GroupedConversations)
			chat.POST("/conversations/active", chatHandler.EnsureActiveConversation)
			chat.GET("/conversations/:id", chatHandler.GetConversation)
			chat.POST("/conversations/:id/select", chatHandler.SelectConversation)
			chat.DELETE("/conversations/:id", chatHandler.DeleteConversation)
			chat.GET("/messages/:conversation_id", chatHandler.GetMessages)
		}

		quick := api.Group("/quickchat")
		{
			quick.POST("/send", chatHandler.QuickSend)
			quick.GET("/history", chatHandler.QuickHistory)
			quick.DELETE("/history", chatHandler.QuickClear)
		}

		summaries := api.Group("/summaries")
		{
			summaries.GET("/today", chatHandler.TodaySummary)
			summaries.GET("/:date", chatHandler.SummaryByDate)
		}
	}

	return router
}
