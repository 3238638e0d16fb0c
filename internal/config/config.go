package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	AppEnv   string

	DBDriver string
	DBDSN    string

	JWTSecret                string
	JWTAlgorithm             string
	AccessTokenExpireMinutes int
	BcryptCost               int

	PersonalitiesFile string
	CORSOrigins       []string

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	LoginMaxFailures   int
	LoginWindowSeconds int

	// AI provider
	AIProvider        string
	ModelTimeout      int // seconds
	GeminiAPIKey      string
	GeminiModel       string
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string

	// rabbitMQ
	RabbitURL         string
	RabbitQueue       string
	RabbitMaxAttempts int
	RabbitRetryDelay  int // seconds
	WorkerConcurrency int
}

// Load reads the process environment. A .env file in the working directory,
// if present, seeds variables that are not already set.
func Load() Config {
	_ = godotenv.Load()

	dbDriver := strings.ToLower(getenv("DB_DRIVER", "sqlite"))
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		switch dbDriver {
		case "mysql":
			// app:apppass@tcp(127.0.0.1:3306)/mindset_coach?charset=utf8mb4&parseTime=true&loc=Local
			dsn = "app:apppass@tcp(127.0.0.1:3306)/mindset_coach?charset=utf8mb4&parseTime=true&loc=Local"
		default:
			dsn = "mindset_coach.db?_pragma=foreign_keys(1)"
		}
	}

	return Config{
		HTTPAddr: getenv("HTTP_ADDR", ":8000"),
		AppEnv:   getenv("APP_ENV", "prod"),

		DBDriver: dbDriver,
		DBDSN:    dsn,

		JWTSecret:                getenv("JWT_SECRET", "dev-secret-change-me"),
		JWTAlgorithm:             strings.ToUpper(getenv("JWT_ALGORITHM", "HS256")),
		AccessTokenExpireMinutes: getint("ACCESS_TOKEN_EXPIRE_MINUTES", 30),
		BcryptCost:               getint("BCRYPT_COST", 10),

		PersonalitiesFile: os.Getenv("PERSONALITIES_FILE"),
		CORSOrigins:       splitList(getenv("CORS_ORIGINS", "http://localhost:8080,http://127.0.0.1:8080,http://localhost:5173")),

		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getint("REDIS_DB", 0),
		LoginMaxFailures:   getint("LOGIN_MAX_FAILURES", 5),
		LoginWindowSeconds: getint("LOGIN_FAILURE_WINDOW_SECONDS", 900),

		AIProvider:        strings.ToLower(getenv("AI_PROVIDER", "gemini")),
		ModelTimeout:      getint("MODEL_TIMEOUT_SECONDS", 60),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getenv("GEMINI_MODEL", "gemini-1.5-flash"),
		OllamaBaseURL:     getenv("OLLAMA_BASE_URL", "http://localhost:11434/v1"),
		OllamaModel:       getenv("OLLAMA_MODEL", "llama3:latest"),
		OpenRouterBaseURL: getenv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   getenv("OPENROUTER_MODEL", "openrouter/auto"),
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: os.Getenv("OPENROUTER_APP_NAME"),

		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitQueue:       getenv("RABBIT_QUEUE", "chat_replies"),
		RabbitMaxAttempts: clamp(getint("RABBIT_MAX_ATTEMPTS", 3), 1, 20),
		RabbitRetryDelay:  clamp(getint("RABBIT_RETRY_DELAY_SECONDS", 5), 1, 3600),
		WorkerConcurrency: clamp(getint("WORKER_CONCURRENCY", 2), 1, 50),
	}
}

func (c Config) IsDev() bool { return c.AppEnv == "dev" }

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
