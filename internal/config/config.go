package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL not configured")

type Config struct {
	Port        string
	DatabaseURL string
	DBMaxConns  int

	LogLevel  string
	LogFormat string

	JWTSecret          string
	TokenTTL           time.Duration
	LegacyPasswordSalt string

	// AI provider
	AIProvider       string
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	ChatModel        string
	EmbeddingModel   string
	OllamaBaseURL    string
	OllamaModel      string
	ProxyURL         string
	ChatMaxTokens    int
	ChatTemperature  float64
	ChatTimeout      time.Duration
	EmbeddingTimeout time.Duration
	EmbeddingMaxLen  int

	// retrieval
	TopK                int
	SimilarityThreshold *float64
	HistoryLimit        int

	// documents
	StoreFullContent    bool
	MaxDocumentsPerUser int
	MaxDocumentBytes    int
	AllowedFileTypes    []string
	PreviewChars        int

	// redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// rabbitMQ
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int
}

// Load reads .env (when present) and the process environment.
// DATABASE_URL is the only required setting.
func Load() (Config, error) {
	_ = godotenv.Load()

	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return Config{}, ErrMissingDatabaseURL
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}

	// "none" (or "off") disables the similarity floor entirely
	var threshold *float64
	switch v := strings.ToLower(strings.TrimSpace(os.Getenv("SIMILARITY_THRESHOLD"))); v {
	case "none", "off":
	case "":
		t := 0.5
		threshold = &t
	default:
		t := 0.5
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			t = f
		}
		threshold = &t
	}

	var fileTypes []string
	for _, ft := range strings.Split(os.Getenv("ALLOWED_FILE_TYPES"), ",") {
		if ft = strings.TrimSpace(ft); ft != "" {
			fileTypes = append(fileTypes, ft)
		}
	}

	return Config{
		Port:        envOrDefault("PORT", "8080"),
		DatabaseURL: dsn,
		DBMaxConns:  envOrDefaultInt("DB_MAX_OPEN_CONNS", 10),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		JWTSecret:          secret,
		TokenTTL:           envOrDefaultDuration("TOKEN_TTL", 24*time.Hour),
		LegacyPasswordSalt: os.Getenv("LEGACY_PASSWORD_SALT"),

		AIProvider:       strings.ToLower(envOrDefault("AI_PROVIDER", "openai")),
		OpenAIBaseURL:    envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		ChatModel:        envOrDefault("CHAT_MODEL", "gpt-4o-mini"),
		EmbeddingModel:   envOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		OllamaBaseURL:    envOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:      envOrDefault("OLLAMA_MODEL", "llama3:latest"),
		ProxyURL:         os.Getenv("PROXY_URL"),
		ChatMaxTokens:    envOrDefaultInt("CHAT_MAX_TOKENS", 1000),
		ChatTemperature:  envOrDefaultFloat("CHAT_TEMPERATURE", 0.7),
		ChatTimeout:      envOrDefaultDuration("CHAT_TIMEOUT", 30*time.Second),
		EmbeddingTimeout: envOrDefaultDuration("EMBEDDING_TIMEOUT", 10*time.Second),
		EmbeddingMaxLen:  envOrDefaultInt("EMBEDDING_MAX_CHARS", 8000),

		TopK:                envOrDefaultInt("RETRIEVAL_TOP_K", 5),
		SimilarityThreshold: threshold,
		HistoryLimit:        envOrDefaultInt("HISTORY_LIMIT", 10),

		StoreFullContent:    envOrDefaultBool("STORE_FULL_CONTENT", true),
		MaxDocumentsPerUser: envOrDefaultInt("MAX_DOCUMENTS_PER_USER", 20),
		MaxDocumentBytes:    envOrDefaultInt("MAX_DOCUMENT_BYTES", 5*1024*1024),
		AllowedFileTypes:    fileTypes,
		PreviewChars:        envOrDefaultInt("PREVIEW_CHARS", 200),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envOrDefaultInt("REDIS_DB", 0),

		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitQueue:       envOrDefault("RABBIT_QUEUE", "document_embeddings"),
		WorkerConcurrency: envOrDefaultInt("WORKER_CONCURRENCY", 2),
	}, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envOrDefaultDuration accepts Go durations ("30s") or a plain number of seconds.
func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
