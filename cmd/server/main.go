package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hospitalops/internal/api"
	"github.com/lalith-99/hospitalops/internal/config"
	"github.com/lalith-99/hospitalops/internal/db"
	"github.com/lalith-99/hospitalops/internal/observ"
	"github.com/lalith-99/hospitalops/internal/orgtree"
	"github.com/lalith-99/hospitalops/internal/realtime"
	"github.com/lalith-99/hospitalops/internal/repository/postgres"
	"github.com/lalith-99/hospitalops/internal/repository/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hospitalops",
		Short:         "Hospital organization structure service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			return migrate(cmd.Context(), command)
		},
	})
	return root
}

func migrate(ctx context.Context, command string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	return database.Migrate(ctx, command)
}

func run(ctx context.Context) error {
	// ---------------------------------------------------------------
	// 1. Config and logger
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// ---------------------------------------------------------------
	// 2. Postgres
	// ---------------------------------------------------------------
	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, "up"); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// ---------------------------------------------------------------
	// 3. Redis (sessions)
	// ---------------------------------------------------------------
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	// ---------------------------------------------------------------
	// 4. Repositories and services
	// ---------------------------------------------------------------
	pool := database.Pool()
	tx := db.NewTransactor(pool)
	nodeRepo := postgres.NewOrgNodeStore(pool)
	depRepo := postgres.NewDependencyStore(pool)
	userRepo := postgres.NewUserStore(pool)
	tenantRepo := postgres.NewTenantStore(pool)
	sessions := redisstore.NewSessionStore(rdb)

	hub := realtime.NewHub(cfg.CORSOrigins, logger)
	orgService := orgtree.NewService(tx, nodeRepo, depRepo, logger).WithEvents(hub)

	// ---------------------------------------------------------------
	// 5. HTTP
	// ---------------------------------------------------------------
	router := api.NewRouter(api.RouterDeps{
		Logger:      logger,
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		HealthChecks: map[string]api.HealthCheck{
			"postgres": database.Health,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		Sessions: sessions,
		Users:    userRepo,
		Auth: api.NewAuthHandler(tx, userRepo, tenantRepo, sessions, api.AuthConfig{
			JWTSecret:    cfg.JWTSecret,
			TokenTTL:     cfg.TokenTTL,
			SessionTTL:   cfg.SessionTTL,
			SecureCookie: cfg.IsProduction(),
		}, logger),
		Org:       api.NewOrgHandler(orgService, logger),
		Structure: api.NewStructureHandler(orgtree.NewLegacyView(nodeRepo), logger),
		User:      api.NewUserHandler(userRepo, nodeRepo, logger),
		Events:    api.NewEventsHandler(hub, logger),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting hospitalops",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
