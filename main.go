package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/roulette/auth"
	"github.com/wfunc/roulette/config"
	"github.com/wfunc/roulette/logger"
	"github.com/wfunc/roulette/models"
	"github.com/wfunc/roulette/monitor"
	"github.com/wfunc/roulette/network"
	"github.com/wfunc/roulette/persistence"
	"github.com/wfunc/roulette/round"
	"github.com/wfunc/roulette/rpc"
	"github.com/wfunc/roulette/server"
	"github.com/wfunc/roulette/services"
	"github.com/wfunc/roulette/session"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Log.Errorw("server stopped with error", "error", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Log.Info("server stopped")
}

func openDatabase(cfg config.DatabaseConfig) (persistence.Database, error) {
	pg := cfg.Postgres
	dsn := persistence.DSN(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, pg.SSLMode)
	if cfg.Driver == config.DriverSQL {
		return persistence.NewPostgreSQL(dsn)
	}
	return persistence.NewGormPostgreSQL(dsn)
}

func userSpecs(users []config.UserConfig) []auth.UserSpec {
	specs := make([]auth.UserSpec, 0, len(users))
	for _, u := range users {
		specs = append(specs, auth.UserSpec{ID: u.ID, Secret: u.Secret, Role: u.Role})
	}
	return specs
}

// seedUsers writes the configured users to the database so a fresh database
// accepts the same credentials as the memory backend.
func seedUsers(ctx context.Context, db persistence.Database, users []config.UserConfig) error {
	for _, u := range users {
		role, err := auth.ParseRole(u.Role)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
		hash, err := auth.HashSecret(u.Secret)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
		if err := db.SaveUser(ctx, &models.User{PlayerID: u.ID, SecretHash: hash, Role: string(role)}); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	return nil
}

func newAuthenticator(ctx context.Context, cfg *config.Config, db persistence.Database) (auth.Authenticator, error) {
	if cfg.Auth.Backend != config.BackendDatabase {
		return auth.NewMemoryAuthenticator(userSpecs(cfg.Auth.Users))
	}
	if err := seedUsers(ctx, db, cfg.Auth.Users); err != nil {
		return nil, err
	}
	return auth.NewDatabaseAuthenticator(db, cfg.Auth.Timeout), nil
}

func run(ctx context.Context, cfg *config.Config) error {
	var db persistence.Database
	if cfg.Database.Enabled {
		var err error
		db, err = openDatabase(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		logger.Log.Infow("database connection successful", "driver", cfg.Database.Driver)
	}

	authenticator, err := newAuthenticator(ctx, cfg, db)
	if err != nil {
		return fmt.Errorf("set up authentication: %w", err)
	}

	history := services.NewHistory(db)
	if err := history.Load(ctx); err != nil {
		logger.Log.Warnw("previous round not loaded", "error", err)
	}

	clock := quartz.NewReal()
	mon := monitor.NewMonitor(cfg.Metrics.Namespace)
	tokens := auth.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	registry := session.NewRegistry(auth.NewTokenAuthenticator(tokens, authenticator), tokens, clock)
	coordinator := round.NewCoordinator(round.Config{
		Registry: registry,
		Clock:    clock,
		History:  history,
		Metrics:  mon,
	})
	coordinator.Start()

	gameServer := server.NewGameServer(server.Options{
		Address:        cfg.Server.HTTPAddress,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Connection: network.Options{
			SendBuffer:     cfg.Server.SendBuffer,
			MaxMessageSize: cfg.Server.MaxMessageSize,
		},
		MessageRate:  cfg.Server.MessageRate,
		MessageBurst: cfg.Server.MessageBurst,
		AuthTimeout:  cfg.Auth.Timeout,
	}, coordinator, mon.Handler())

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, coordinator)
	if err != nil {
		return fmt.Errorf("create RPC server: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(gameServer.Start)
	g.Go(func() error {
		rpcServer.Start()
		return nil
	})
	g.Go(func() error {
		return history.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		rpcServer.Stop()
		return gameServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
