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

	appconfig "github.com/recollect-labs/recollect/config"
	"github.com/recollect-labs/recollect/internal/cluster"
	"github.com/recollect-labs/recollect/internal/store"
	"github.com/recollect-labs/recollect/provider"
)

// Run wires the service dependencies and serves the HTTP API.
func Run(cfg *appconfig.Config) error {
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
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	ctx := context.Background()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	var results cluster.ResultStore = st
	if cfg.Storage.Redis.Enabled {
		client, err := store.Conn(ctx, cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		results = store.NewCachedStore(st, client, cfg.Clustering.CacheTTL, nil)
	}

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	discoverer := cluster.NewLLMThemeDiscoverer(llm, cfg.Clustering.MaxThemes, cfg.Clustering.MaxTokens, cfg.Clustering.Temperature, nil)
	orch := cluster.NewOrchestrator(discoverer, llm, results, cluster.Options{
		SimilarityThreshold: cfg.Clustering.SimilarityThreshold,
		EmbedTextLimit:      cfg.Clustering.EmbedTextLimit,
	}, log.New(log.Writer(), "[ORCH] ", log.LstdFlags))

	secret := cfg.General.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (general.jwt_secret)")
	}

	api := e.Group("/api")

	auth := &AuthHandler{Store: st, Secret: []byte(secret)}
	auth.Register(api.Group("/auth"))

	sessions := &SessionsHandler{
		Orchestrator:      orch,
		Store:             st,
		Results:           results,
		CurrentSessionGap: time.Duration(cfg.Clustering.CurrentSessionGapMinutes) * time.Minute,
	}
	sessions.Register(api.Group("/sessions"), []byte(secret))

	return e.Start(cfg.Server.Address)
}
