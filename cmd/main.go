package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/ddanshin/task-manager/internal/api"
	"github.com/ddanshin/task-manager/internal/auth"
	"github.com/ddanshin/task-manager/internal/config"
	"github.com/ddanshin/task-manager/internal/db"
	"github.com/ddanshin/task-manager/internal/repository"
	"github.com/ddanshin/task-manager/internal/service"
	"github.com/ddanshin/task-manager/pkg/logger"
	"github.com/hellofresh/health-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		panic(err)
	}

	l, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	defer l.Sync()

	l.Info("starting application")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresDSN())
	if err != nil {
		l.Fatal("failed to parse database config", zap.Error(err))
	}
	poolConfig.MaxConns = int32(cfg.Postgres.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		l.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err = pool.Ping(ctx); err != nil {
		l.Fatal("failed to ping database", zap.Error(err))
	}

	l.Info("database connection established")

	privateKey, err := auth.LoadPrivateKey(cfg.Auth.PrivateKeyPath)
	if err != nil {
		l.Fatal("failed to load private key", zap.String("path", cfg.Auth.PrivateKeyPath), zap.Error(err))
	}
	publicKey, err := auth.LoadPublicKey(cfg.Auth.PublicKeyPath)
	if err != nil {
		l.Fatal("failed to load public key", zap.String("path", cfg.Auth.PublicKeyPath), zap.Error(err))
	}

	issuer := auth.NewTokenIssuer(privateKey, cfg.Auth.TokenTTL)
	verifier := auth.NewTokenVerifier(publicKey)

	transactor := db.NewPgxTransactor(pool)

	userRepo := repository.NewPgxUserRepository(pool)
	teamRepo := repository.NewPgxTeamRepository(pool)
	taskRepo := repository.NewPgxTaskRepository(pool)
	noteRepo := repository.NewPgxNoteRepository(pool)

	gate := service.NewGate(teamRepo, taskRepo, noteRepo)

	authService := service.NewAuthService(issuer, cfg.Auth.BcryptCost).WithUserRepo(userRepo)
	userService := service.NewUserService().WithUserRepo(userRepo)
	teamService := service.NewTeamService(transactor).
		WithUserRepo(userRepo).
		WithTeamRepo(teamRepo).
		WithTaskRepo(taskRepo).
		WithNoteRepo(noteRepo).
		WithGate(gate)
	taskService := service.NewTaskService().
		WithUserRepo(userRepo).
		WithTeamRepo(teamRepo).
		WithTaskRepo(taskRepo).
		WithGate(gate)
	noteService := service.NewNoteService(transactor).
		WithUserRepo(userRepo).
		WithTeamRepo(teamRepo).
		WithTaskRepo(taskRepo).
		WithNoteRepo(noteRepo).
		WithGate(gate)

	healthChecker := api.MustNewHealthChecker(health.Config{
		Name:    "postgres",
		Timeout: 5 * time.Second,
		Check: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	})

	e := echo.New()
	e.HideBanner = true

	handler := api.NewHandler(l).
		WithAuthService(authService).
		WithUserService(userService).
		WithTeamService(teamService).
		WithTaskService(taskService).
		WithNoteService(noteService).
		WithTokenVerifier(verifier).
		WithHealthChecker(healthChecker)

	handler.RegisterRoutes(e)

	go func() {
		l.Info("server starting", zap.String("addr", cfg.ServerAddr()))
		if err := e.Start(cfg.ServerAddr()); err != nil {
			l.Info("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()

	l.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		l.Error("failed to shut down server gracefully", zap.Error(err))
	}
}
