package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/kbchat/internal/ai"
	"github.com/suPer8Hu/kbchat/internal/config"
	"github.com/suPer8Hu/kbchat/internal/db"
	"github.com/suPer8Hu/kbchat/internal/documents"
	"github.com/suPer8Hu/kbchat/internal/embedjob"
	"github.com/suPer8Hu/kbchat/internal/store/rabbitmq"
	"github.com/suPer8Hu/kbchat/internal/store/redisstore"
	"github.com/suPer8Hu/kbchat/internal/telemetry"
)

func workerConcurrency(n int) int {
	if n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		telemetry.NewLogger(os.Stderr, "error", "json").Error("config", "error", err)
		os.Exit(1)
	}
	log := telemetry.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	hook := telemetry.NewSlogHook(log)

	if cfg.RabbitURL == "" {
		log.Error("RABBIT_URL not configured")
		os.Exit(1)
	}

	gdb, err := db.Connect(cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Error("database", "error", err)
		os.Exit(1)
	}

	client, err := ai.NewHTTPClient(cfg.EmbeddingTimeout, cfg.ProxyURL)
	if err != nil {
		log.Error("http client", "error", err)
		os.Exit(1)
	}
	embedder := ai.NewEmbedder(ai.EmbedderConfig{
		BaseURL:  cfg.OpenAIBaseURL,
		APIKey:   cfg.OpenAIAPIKey,
		Model:    cfg.EmbeddingModel,
		MaxChars: cfg.EmbeddingMaxLen,
		Client:   client,
		Hook:     hook,
	})
	docs := documents.NewService(documents.NewRepo(gdb), embedder, nil, hook, documents.Options{
		MaxDocuments:     cfg.MaxDocumentsPerUser,
		MaxBytes:         cfg.MaxDocumentBytes,
		StoreFullContent: cfg.StoreFullContent,
		PreviewChars:     cfg.PreviewChars,
	})

	var dedupe embedjob.Deduper
	if cfg.RedisAddr != "" {
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rds.Close()
		dedupe = rds
	}
	proc := embedjob.NewProcessor(docs, dedupe, hook, log)

	// retries go back through the retry queue
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Error("rabbit publisher", "error", err)
		os.Exit(1)
	}
	defer pub.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Error("rabbit dial", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Error("rabbit channel", "error", err)
		os.Exit(1)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Error("queue declare", "error", err)
		os.Exit(1)
	}

	//  strict concurrency control
	concurrency := workerConcurrency(cfg.WorkerConcurrency)

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Error("qos", "error", err)
		os.Exit(1)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Error("consume", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				m, outcome := proc.Handle(ctx, d.Body)

				switch outcome {
				case embedjob.Done:
					if err := d.Ack(false); err != nil {
						log.Warn("ack failed", "worker", workerID, "job_id", m.JobID, "error", err)
					}
				case embedjob.Retry:
					if err := pub.Retry(ctx, m, embedjob.DefaultRetryDelay); err != nil {
						log.Warn("retry publish failed", "worker", workerID, "job_id", m.JobID, "error", err)
						_ = d.Nack(false, false)
						continue
					}
					_ = d.Ack(false)
				default:
					_ = d.Nack(false, false)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				stop()
				msgs = nil
				continue
			}
			jobs <- d
		}
	}
}
