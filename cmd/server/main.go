package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shared-terminal/backend/api/handlers"
	"github.com/shared-terminal/backend/internal/config"
	"github.com/shared-terminal/backend/internal/journal"
	"github.com/shared-terminal/backend/internal/logging"
	"github.com/shared-terminal/backend/internal/monitoring"
	"github.com/shared-terminal/backend/internal/session"
	"github.com/shared-terminal/backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	var jrnl *journal.Journal
	if cfg.Journal.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0755); err != nil {
			logger.Fatal("create journal directory", zap.Error(err))
		}
		jrnl, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			logger.Fatal("open journal", zap.Error(err))
		}
		defer jrnl.Close()
	}

	if cfg.Cast.Dir != "" {
		if err := os.MkdirAll(cfg.Cast.Dir, 0755); err != nil {
			logger.Fatal("create cast directory", zap.Error(err))
		}
	}

	metrics := monitoring.NewMetrics()

	// The one terminal session. Everything below holds a reference to it;
	// there is no package-level singleton.
	sess := session.New(session.Config{
		Command:    cfg.Terminal.Command,
		Rows:       cfg.Terminal.Rows,
		Cols:       cfg.Terminal.Cols,
		Scrollback: cfg.Terminal.Scrollback,
		CastDir:    cfg.Cast.Dir,
	}, logger, metrics, jrnl)

	wsHandler := ws.NewHandler(sess, logger)
	terminalHandler := handlers.NewTerminalHandler(sess, jrnl, logger)
	attachHandler := handlers.NewWebSocketHandler(wsHandler)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(monitoring.Handler()))

	api := router.Group("/api")
	{
		terminalHandler.RegisterRoutes(api)
		attachHandler.RegisterRoutes(api)
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.Server.Addr()),
			zap.String("command", cfg.Terminal.Command))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	if err := sess.Shutdown(); err != nil {
		logger.Error("session shutdown", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
}
