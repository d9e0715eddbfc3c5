package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/event-admin/internal/auth"
	"github.com/spec-kit/event-admin/internal/config"
	"github.com/spec-kit/event-admin/internal/observability"
	"github.com/spec-kit/event-admin/internal/persistence"
	"github.com/spec-kit/event-admin/internal/revocation"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "authctl",
	Short:         "Operate event-admin tokens and the revocation store",
	Long:          "authctl issues and inspects tokens and manages the revocation store using the service configuration.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log revocation store activity to stderr")
}

// configLoader and storeFactory are swapped in tests.
var configLoader = config.Load

var storeFactory = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*revocation.Store, func(), error) {
	redis := persistence.NewRedis(cfg.Redis, logger)
	store := revocation.New(redis.RevocationClient(), revocation.Options{
		KeyPrefix:       cfg.Revocation.KeyPrefix,
		MinTTL:          cfg.Revocation.MinTTL,
		ConnectAttempts: cfg.Revocation.ConnectAttempts,
		BackoffBase:     cfg.Revocation.BackoffBase,
		BackoffMax:      cfg.Revocation.BackoffMax,
		OpTimeout:       cfg.Redis.OpTimeout,
		FailClosed:      cfg.Revocation.FailClosed,
	}, revocation.WithLogger(logger))
	if err := store.Connect(ctx); err != nil {
		redis.Close()
		return nil, nil, err
	}
	return store, redis.Close, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "authctl:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := configLoader()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newSigner(cfg *config.Config) *auth.Signer {
	return auth.NewSigner(cfg.Auth.JWTSecret, auth.WithIssuer(cfg.Auth.Issuer))
}

// openStore connects to the configured revocation store. Unlike the server,
// the CLI treats an unreachable store as an error.
func openStore(cmd *cobra.Command, cfg *config.Config) (*revocation.Store, func(), error) {
	store, closeFn, err := storeFactory(cmd.Context(), cfg, newLogger(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("revocation store unavailable: %w", err)
	}
	if store.State() == revocation.StateUnconfigured {
		closeFn()
		return nil, nil, fmt.Errorf("revocation store not configured: set REDIS_ADDR")
	}
	return store, closeFn, nil
}
