package config

import (
	"os"
	"strconv"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	// DB_DRIVER is "mysql" or "sqlite"
	DBDriver string
	DBDSN    string

	JWTSecret string

	// Redis backs the chat rate limiter; empty addr disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitChat       int
	RateLimitWindowSecs int

	// RabbitMQ carries audit events; empty URL disables publishing.
	RabbitURL   string
	RabbitQueue string

	// LLM provider selection and the fixed master prompt. The prompt is
	// process configuration and is never taken from request input.
	LLMProvider  string
	MasterPrompt string

	OpenAIBaseURL string
	OpenAIAPIKey  string
	TextModel     string
	VisionModel   string

	ZaiBaseURL string
	ZaiAPIKey  string
	ZaiModel   string

	CORSOrigins string
}

const defaultMasterPrompt = "You are a domain-restricted assistant. " +
	"Only answer questions within the allowed domain. " +
	"If the user asks outside the domain, say you can't help with that."

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func Load() Config {
	driver := getenv("DB_DRIVER", "mysql")

	// mysql DSN demo:
	// app:apppass@tcp(127.0.0.1:3306)/chatgate?charset=utf8mb4&parseTime=true&loc=Local
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		if driver == "sqlite" {
			dsn = "chatgate.db"
		} else {
			dsn = "app:apppass@tcp(127.0.0.1:3306)/chatgate?charset=utf8mb4&parseTime=true&loc=Local"
		}
	}

	return Config{
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		DBDriver: driver,
		DBDSN:    dsn,

		JWTSecret: getenv("JWT_SECRET", "dev-secret-change-me"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getenvInt("REDIS_DB", 0),

		RateLimitChat:       getenvInt("RATE_LIMIT_CHAT", 20),
		RateLimitWindowSecs: getenvInt("RATE_LIMIT_WINDOW_SECS", 60),

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: getenv("RABBIT_QUEUE", "audit_events"),

		LLMProvider:  getenv("LLM_PROVIDER", "openai"),
		MasterPrompt: getenv("MASTER_PROMPT", defaultMasterPrompt),

		OpenAIBaseURL: getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		TextModel:     getenv("TEXT_MODEL", "gpt-4o-mini"),
		VisionModel:   getenv("VISION_MODEL", "gpt-4o-mini"),

		ZaiBaseURL: getenv("ZAI_BASE_URL", "https://api.z.ai/api/paas/v4"),
		ZaiAPIKey:  os.Getenv("ZAI_API_KEY"),
		ZaiModel:   getenv("ZAI_MODEL", "zai-1.0"),

		CORSOrigins: getenv("CORS_ORIGINS", "*"),
	}
}
