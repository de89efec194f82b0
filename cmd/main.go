package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/iamdebrajghosh/task-manager/internal/auth"
	"github.com/iamdebrajghosh/task-manager/internal/config"
	"github.com/iamdebrajghosh/task-manager/internal/database"
	"github.com/iamdebrajghosh/task-manager/internal/session"
	"github.com/iamdebrajghosh/task-manager/internal/token"
	"github.com/iamdebrajghosh/task-manager/internal/user"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"moul.io/chizap"
)

func main() {
	// init logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	// load dotenv file
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded", zap.Error(err))
	}

	// load config; a missing signing secret is fatal, the server must not
	// come up minting unverifiable tokens
	cfg, err := config.LoadConfig(logger)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// load database
	db, err := database.Init(cfg.DbConfig)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// run migrations
	database.SetMigrationLogger(logger)
	if err := database.Migrate(context.Background(), db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// wire the auth stack
	users := user.NewRepository(db, logger)
	sessions := session.NewPostgresStore(db, logger)
	codec := token.NewCodec(logger, cfg.JWTConfig)
	authService := auth.NewService(users, sessions, codec, logger)
	authHandler := auth.NewHandler(authService, codec, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chizap.New(logger, &chizap.Opts{
		WithReferer:   false,
		WithUserAgent: true,
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", auth.LegacyTokenHeader},
	}))

	r.Route("/api", func(r chi.Router) {
		r.With(httprate.LimitByIP(30, time.Minute)).Mount("/auth", authHandler.Routes())
	})

	srv := &http.Server{
		Addr:         ":" + cfg.AppConfig.Port,
		Handler:      r,
		ReadTimeout:  cfg.AppConfig.ReadTimeout,
		WriteTimeout: cfg.AppConfig.WriteTimeout,
		IdleTimeout:  cfg.AppConfig.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", zap.String("port", cfg.AppConfig.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
