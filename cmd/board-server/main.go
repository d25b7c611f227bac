package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/triageboard/triageboard/internal/config"
	"github.com/triageboard/triageboard/internal/domain/board"
	"github.com/triageboard/triageboard/internal/domain/dashboard"
	"github.com/triageboard/triageboard/internal/domain/encounter"
	"github.com/triageboard/triageboard/internal/platform/db"
	"github.com/triageboard/triageboard/internal/platform/middleware"
	"github.com/triageboard/triageboard/internal/platform/triageapi"
	"github.com/triageboard/triageboard/internal/platform/ws"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "board-server",
		Short: "Nurse triage board server",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the board API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Triage backend client
	triageClient := triageapi.NewClient(cfg.TriageBaseURL, logger)
	triageClient.SetTimeout(time.Duration(cfg.SnapshotTimeoutSeconds) * time.Second)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	apiV1.Use(middleware.RequestTimeout(30 * time.Second))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// WebSocket relay
	hub := ws.NewHub(logger)
	wsHandler := ws.NewHandler(hub)
	wsHandler.RegisterRoutes(apiV1)

	// Encounter domain
	encRepo := encounter.NewRepo(pool)
	encSvc := encounter.NewService(encRepo)
	encHandler := encounter.NewHandler(encSvc)
	encHandler.RegisterRoutes(apiV1)

	// Board domain
	boardSvc := board.NewService(encSvc, triageClient, logger)
	boardSvc.SetLoadConcurrency(cfg.BoardLoadConcurrency)

	panel := board.NewPanelManager(triageClient, logger)
	panel.SetNotify(func(eventType, encounterID string, state *dashboard.Dashboard) {
		data, err := json.Marshal(state)
		if err != nil {
			logger.Error().Err(err).Str("encounter_id", encounterID).Msg("marshal dashboard state")
			return
		}
		hub.Broadcast(ws.DashboardEvent{
			Type:        eventType,
			EncounterID: encounterID,
			Timestamp:   time.Now().UTC(),
			Data:        data,
		})
	})
	defer panel.Close()

	boardHandler := board.NewHandler(boardSvc, panel)
	boardHandler.RegisterRoutes(apiV1)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting board server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}

	return nil
}
