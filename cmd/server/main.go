// Command collabcode-server starts the collaborative editor backend.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/avdeev7/collabcode/internal/compiler"
	"github.com/avdeev7/collabcode/internal/config"
	"github.com/avdeev7/collabcode/internal/hub"
	"github.com/avdeev7/collabcode/internal/limiter"
	"github.com/avdeev7/collabcode/internal/migrate"
	"github.com/avdeev7/collabcode/internal/presence"
	"github.com/avdeev7/collabcode/internal/repository/postgres"
	"github.com/avdeev7/collabcode/internal/runner"
	"github.com/avdeev7/collabcode/internal/server"
	"github.com/avdeev7/collabcode/internal/service"
	"github.com/avdeev7/collabcode/internal/syntax"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses configuration, runs migrations, and starts the HTTP server.
func main() {
	cfgName := flag.String("config", "config", "configuration file name, without extension")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*cfgName)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Server.Address),
	)

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("missing jwt secret (auth.jwtSecret / COLLABCODE_AUTH_JWTSECRET)")
	}
	signKey := []byte(cfg.Auth.JWTSecret)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DB.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	// Repositories
	db := &postgres.DB{Pool: pool}
	userRepo := postgres.NewUserRepo(db)
	docRepo := postgres.NewDocumentRepo(db)
	permRepo := postgres.NewPermissionRepo(db)
	roomRepo := postgres.NewRoomRepo(db)

	lim := limiter.NewPG(pool, 15*time.Minute, 5, 15*time.Minute)

	// Broadcast plumbing
	h := hub.New(logger)
	tracker := presence.New(h, logger)

	// Toolchain
	javac := compiler.NewJavac(logger)
	checker := syntax.NewCompilerChecker(javac)
	sandbox := runner.NewProcessSandbox(logger)

	// Services
	authSvc := service.NewAuthService(userRepo, signKey, cfg.Auth.AccessTTL, lim)
	permSvc := service.NewPermissionService(permRepo, docRepo, h, logger)
	docSvc := service.NewDocumentService(docRepo, permRepo, logger)
	roomSvc := service.NewRoomService(roomRepo, docRepo, cfg.Server.PublicURL, logger)
	collabSvc := service.NewCollabService(docRepo, permSvc, checker, h, logger)
	pipelineSvc := service.NewPipelineService(permSvc, javac, sandbox, h,
		cfg.Runner.Timeout, cfg.Runner.MaxOutput, logger)

	srv := server.New(authSvc, docSvc, permSvc, roomSvc, collabSvc, pipelineSvc,
		userRepo, h, tracker, signKey, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Address))
		errCh <- httpServer.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
			_ = httpServer.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
