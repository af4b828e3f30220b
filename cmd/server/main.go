package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kbchat/internal/ai"
	"github.com/suPer8Hu/kbchat/internal/auth"
	"github.com/suPer8Hu/kbchat/internal/chat"
	"github.com/suPer8Hu/kbchat/internal/config"
	"github.com/suPer8Hu/kbchat/internal/db"
	"github.com/suPer8Hu/kbchat/internal/documents"
	"github.com/suPer8Hu/kbchat/internal/embedjob"
	"github.com/suPer8Hu/kbchat/internal/httpapi"
	"github.com/suPer8Hu/kbchat/internal/httpapi/handlers"
	"github.com/suPer8Hu/kbchat/internal/store/rabbitmq"
	"github.com/suPer8Hu/kbchat/internal/store/redisstore"
	"github.com/suPer8Hu/kbchat/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	log := telemetry.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)
	hook := telemetry.NewSlogHook(log)
	gin.SetMode(gin.ReleaseMode)

	gdb, err := db.Connect(cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Error("database", "error", err)
		os.Exit(1)
	}

	// one proxy-aware client per external API
	chatClient, err := ai.NewHTTPClient(cfg.ChatTimeout, cfg.ProxyURL)
	if err != nil {
		log.Error("chat http client", "error", err)
		os.Exit(1)
	}
	embedClient, err := ai.NewHTTPClient(cfg.EmbeddingTimeout, cfg.ProxyURL)
	if err != nil {
		log.Error("embedding http client", "error", err)
		os.Exit(1)
	}

	embedder := ai.NewEmbedder(ai.EmbedderConfig{
		BaseURL:  cfg.OpenAIBaseURL,
		APIKey:   cfg.OpenAIAPIKey,
		Model:    cfg.EmbeddingModel,
		MaxChars: cfg.EmbeddingMaxLen,
		Client:   embedClient,
		Hook:     hook,
	})

	reg := newRegistry(cfg, chatClient)
	ctx := context.Background()
	provider, err := reg.Get(ctx, cfg.AIProvider, "")
	if err != nil {
		log.Error("ai provider", "error", err, "registered", strings.Join(reg.Names(), ","))
		os.Exit(1)
	}
	model := cfg.ChatModel
	if named, ok := provider.(interface{ ModelName() string }); ok {
		model = named.ModelName()
	}

	// optional backfill queue
	var queue documents.Queue
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Error("rabbitmq publisher", "error", err)
			os.Exit(1)
		}
		defer pub.Close()

		if cfg.RedisAddr != "" {
			rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			defer rds.Close()
			if err := rds.Ping(ctx); err != nil {
				log.Warn("redis unavailable, embedding jobs are not de-duplicated", "error", err)
			} else {
				pub.WithDedupe(rds, embedjob.DefaultClaimTTL, hook)
			}
		}
		queue = pub
	}

	docs := documents.NewService(documents.NewRepo(gdb), embedder, queue, hook, documents.Options{
		MaxDocuments:     cfg.MaxDocumentsPerUser,
		MaxBytes:         cfg.MaxDocumentBytes,
		StoreFullContent: cfg.StoreFullContent,
		PreviewChars:     cfg.PreviewChars,
		AllowedFileTypes: cfg.AllowedFileTypes,
	})
	chatSvc := chat.NewService(embedder, docs, provider, hook, chat.Options{
		TopK:         cfg.TopK,
		Threshold:    cfg.SimilarityThreshold,
		HistoryLimit: cfg.HistoryLimit,
		Model:        model,
	})
	authSvc := auth.NewService(gdb, hook, auth.Options{
		JWTSecret:  cfg.JWTSecret,
		TokenTTL:   cfg.TokenTTL,
		LegacySalt: cfg.LegacyPasswordSalt,
	})

	h := handlers.NewHandler(authSvc, docs, chatSvc, cfg.AIProvider, cfg.MaxDocumentsPerUser)
	r := httpapi.NewRouter(h, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server started", "addr", srv.Addr, "provider", cfg.AIProvider, "model", model,
			"queue", queue != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", "error", err)
			stop()
		}
	}()

	<-sigCtx.Done()
	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
}

func newRegistry(cfg config.Config, client *http.Client) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("openai", func(_ context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.ChatModel
		}
		return ai.NewOpenAIProvider(ai.OpenAIConfig{
			BaseURL:     cfg.OpenAIBaseURL,
			APIKey:      cfg.OpenAIAPIKey,
			Model:       m,
			MaxTokens:   cfg.ChatMaxTokens,
			Temperature: cfg.ChatTemperature,
			Client:      client,
		}), nil
	})
	reg.Register("ollama", func(_ context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		p := ai.NewOllamaProvider(cfg.OllamaBaseURL, m, client)
		p.MaxTokens = cfg.ChatMaxTokens
		p.Temperature = cfg.ChatTemperature
		return p, nil
	})
	return reg
}
