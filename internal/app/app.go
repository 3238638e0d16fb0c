// Package app wires configuration into the services shared by the HTTP
// server and the reply worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elishakaranja/Mindset-coach/internal/ai"
	"github.com/elishakaranja/Mindset-coach/internal/auth"
	"github.com/elishakaranja/Mindset-coach/internal/chat"
	"github.com/elishakaranja/Mindset-coach/internal/config"
	"github.com/elishakaranja/Mindset-coach/internal/db"
	"github.com/elishakaranja/Mindset-coach/internal/httpapi"
	"github.com/elishakaranja/Mindset-coach/internal/httpapi/handlers"
	"github.com/elishakaranja/Mindset-coach/internal/persona"
	"github.com/elishakaranja/Mindset-coach/internal/store/rabbitmq"
	"github.com/elishakaranja/Mindset-coach/internal/store/redisstore"
	"github.com/elishakaranja/Mindset-coach/internal/users"
)

type App struct {
	Cfg      config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Personas *persona.Registry
	Users    *users.Service
	Chat     *chat.Service
	Redis    *redisstore.Store   // nil when REDIS_ADDR is empty
	Rabbit   *rabbitmq.Publisher // nil when RABBIT_URL is empty

	closers []func() error
}

func NewLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsDev() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Options selects the optional collaborators a process needs.
type Options struct {
	Publisher bool
	Redis     bool
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger, opts Options) (_ *App, err error) {
	a := &App{Cfg: cfg, Log: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.DB, err = db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	gdb := a.DB
	a.closers = append(a.closers, func() error { return db.Close(gdb) })

	a.Personas, err = persona.Load(cfg.PersonalitiesFile)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTAlgorithm, time.Duration(cfg.AccessTokenExpireMinutes)*time.Minute)
	if err != nil {
		return nil, err
	}
	a.Users = users.NewService(users.NewRepo(a.DB), auth.NewHasher(cfg.BcryptCost), tokens, a.Personas)

	provider, err := Providers(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		return nil, err
	}
	a.Chat = chat.NewService(chat.NewRepo(a.DB), a.Personas, provider, log)
	log.Info("model provider ready", zap.String("provider", provider.Name()))

	if opts.Publisher && cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue, time.Duration(cfg.RabbitRetryDelay)*time.Second)
		if err != nil {
			return nil, fmt.Errorf("rabbit publisher: %w", err)
		}
		a.Rabbit = pub
		a.closers = append(a.closers, pub.Close)
		a.Chat.WithPublisher(pub)
	}

	if opts.Redis && cfg.RedisAddr != "" {
		store := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		a.closers = append(a.closers, store.Close)
		if err := store.Ping(ctx); err != nil {
			// throttling is optional; run without it
			log.Warn("redis unavailable, login throttling disabled", zap.Error(err))
		} else {
			a.Redis = store
		}
	}
	return a, nil
}

func (a *App) Router() *gin.Engine {
	var throttle *redisstore.LoginThrottle
	if a.Redis != nil {
		throttle = redisstore.NewLoginThrottle(a.Redis, a.Cfg.LoginMaxFailures,
			time.Duration(a.Cfg.LoginWindowSeconds)*time.Second)
	}
	h := handlers.NewHandler(a.Users, a.Chat, a.Personas, throttle, a.Log)
	return httpapi.NewRouter(h, a.Cfg.CORSOrigins)
}

// Close releases everything New acquired, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Providers registers every supported model backend.
func Providers(cfg config.Config) *ai.Registry {
	timeout := time.Duration(cfg.ModelTimeout) * time.Second
	reg := ai.NewRegistry()

	reg.Register("gemini", func(ctx context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.GeminiModel
		}
		return ai.NewGeminiProvider(ctx, ai.GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: model})
	})

	reg.Register("openrouter", func(_ context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OpenRouterModel
		}
		headers := map[string]string{}
		if cfg.OpenRouterSiteURL != "" {
			headers["HTTP-Referer"] = cfg.OpenRouterSiteURL
		}
		if cfg.OpenRouterAppName != "" {
			headers["X-Title"] = cfg.OpenRouterAppName
		}
		return ai.NewOpenAIProvider(ai.OpenAIConfig{
			Name:    "openrouter",
			BaseURL: cfg.OpenRouterBaseURL,
			APIKey:  cfg.OpenRouterAPIKey,
			Model:   model,
			Headers: headers,
			Timeout: timeout,
		})
	})

	// Ollama serves the OpenAI wire format under /v1.
	reg.Register("ollama", func(_ context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OllamaModel
		}
		return ai.NewOpenAIProvider(ai.OpenAIConfig{
			Name:    "ollama",
			BaseURL: cfg.OllamaBaseURL,
			APIKey:  "ollama",
			Model:   model,
			Timeout: timeout,
		})
	})
	return reg
}
