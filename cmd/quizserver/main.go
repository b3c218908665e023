// Package main provides the quiz room server. It serves WebSocket clients,
// hosts the live room sessions, and reads quiz content from the configured
// backend.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/openquiz/quizroom/internal/config"
	"github.com/openquiz/quizroom/internal/content"
	"github.com/openquiz/quizroom/internal/observability"
	"github.com/openquiz/quizroom/internal/room"
	"github.com/openquiz/quizroom/internal/server"
	"github.com/openquiz/quizroom/internal/storage/postgres"
	"github.com/openquiz/quizroom/internal/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting quiz room server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("content_backend", cfg.Content.Backend),
	)

	ctx := context.Background()
	lifecycle := server.NewLifecycle(logger)

	var store content.Store
	switch cfg.Content.Backend {
	case config.BackendPostgres:
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
			zap.String("database", cfg.Database.Name),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		store = postgres.NewQuizRepository(pool.DB())

		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				for {
					time.Sleep(30 * time.Second)
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			},
			StopFn: func() {
				pool.Close()
			},
		})

	default:
		memStore := content.NewMemoryStore()
		if cfg.Content.QuizDir != "" {
			defaults := content.Defaults{
				TimeLimit: cfg.Content.DefaultTimeLimit,
				Points:    cfg.Content.DefaultPoints,
			}
			loaded, err := content.LoadQuizzesIntoStore(cfg.Content.QuizDir, defaults, memStore)
			if err != nil {
				logger.Fatal("loading quiz packs", zap.Error(err))
			}
			logger.Info("quiz packs loaded",
				zap.String("dir", cfg.Content.QuizDir),
				zap.Int("quizzes", loaded),
			)
		}
		store = memStore
	}

	registry := room.NewRegistry(store, logger)
	handler := ws.NewHandler(registry, logger, cfg.Server.OutboxSize, cfg.Server.WriteTimeout)
	acceptor := ws.NewAcceptor(cfg.Server, handler, logger)

	lifecycle.Add("websocket", &server.FuncService{
		StartFn: func() error {
			return acceptor.ListenAndServe()
		},
		StopFn: func() {
			acceptor.Stop()
		},
	})

	logger.Info("quiz room server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
