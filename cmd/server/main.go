package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"chatgate/internal/audit"
	"chatgate/internal/chat"
	"chatgate/internal/config"
	"chatgate/internal/db"
	"chatgate/internal/httpapi"
	"chatgate/internal/httpapi/handlers"
	"chatgate/internal/llm"
	"chatgate/internal/session"
	"chatgate/internal/store/rabbitmq"
	"chatgate/internal/store/redisstore"
	"chatgate/internal/strategy"
)

func buildClient(cfg config.Config) llm.Client {
	switch strings.ToLower(cfg.LLMProvider) {
	case "", "openai":
		return llm.NewOpenAIClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey,
			cfg.TextModel, cfg.VisionModel, cfg.MasterPrompt)
	case "zai":
		return llm.NewZaiClient(cfg.ZaiBaseURL, cfg.ZaiAPIKey, cfg.ZaiModel, cfg.MasterPrompt)
	default:
		return nil
	}
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := config.InitLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	client := buildClient(cfg)
	if client == nil {
		log.Fatal("unsupported llm provider", zap.String("provider", cfg.LLMProvider))
	}

	sessions := session.NewService(session.NewRepo(gdb))
	chats := chat.NewRepo(gdb)

	dispatcher := strategy.NewDispatcher(log,
		strategy.NewChatStrategy(chats, client),
		strategy.NewImageAnalysisStrategy(chats, client),
		strategy.NewImageStrategy(chats),
	)
	log.Info("strategies registered",
		zap.Strings("modes", dispatcher.Modes()),
		zap.String("provider", client.Name()),
		zap.String("model", client.ModelName()))

	var rds *redisstore.Store
	if cfg.RedisAddr != "" {
		rds = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rds.Close()
	}

	var pub audit.Publisher
	if cfg.RabbitURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatal("rabbitmq connect failed", zap.Error(err))
		}
		defer p.Close()
		pub = p
	}
	auditor := audit.NewAuditor(log, pub)

	h := handlers.NewHandler(cfg, log, sessions, chats, dispatcher, auditor)
	router := httpapi.NewRouter(cfg, log, h, rds)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", zap.Error(err))
	}
}
