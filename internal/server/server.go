package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devy-ai/devy/config"
	"github.com/devy-ai/devy/internal/advisor"
	"github.com/devy-ai/devy/internal/store"
	"github.com/devy-ai/devy/provider"
)

// Run wires the store, provider and advisor from config and serves the
// HTTP API until the listener fails.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	llm, err := provider.NewProvider(provider.Client(cfg.LLM.Provider), provider.Options{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return err
	}

	adv := advisor.New(st, llm, advisor.Config{
		MaxHistoryTurns: cfg.Conversation.MaxHistoryTurns,
		GenerateTimeout: cfg.LLM.Timeout,
	}, log.New(log.Writer(), "[ADVISOR] ", log.LstdFlags))

	h := &ChatHandler{Advisor: adv, Logger: baseLogger}
	h.Register(e.Group("/api"))

	addr := cfg.General.Listen
	if addr == "" {
		addr = ":8088"
	}
	log.Printf("listening on %s (storage driver: %s)", addr, cfg.Storage.Driver)
	return e.Start(addr)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		dsn, err := cfg.Storage.Postgres.DSN()
		if err != nil {
			return nil, err
		}
		if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return store.NewPostgres(ctx, dsn)
	case "redis":
		return store.NewRedis(ctx, cfg.Storage.Redis.Addr(), cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, 5*time.Second)
	case "", "memory":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
