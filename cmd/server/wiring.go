package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/blueberrycongee/cachemux/internal/auth"
	"github.com/blueberrycongee/cachemux/internal/config"
	"github.com/blueberrycongee/cachemux/internal/listener"
	"github.com/blueberrycongee/cachemux/internal/secret"
	"github.com/blueberrycongee/cachemux/internal/secret/env"
	"github.com/blueberrycongee/cachemux/internal/secret/vault"
)

// newSecretManager builds the secret manager with the env provider and,
// when VAULT_ADDR is set, a Vault provider. Resolved values are cached
// briefly to avoid hammering the backend on config reloads.
func newSecretManager(logger *slog.Logger) (*secret.Manager, error) {
	m := secret.NewManager()
	m.Register("env", secret.NewCachedProvider(env.New(), 5*time.Minute))

	if addr := os.Getenv("VAULT_ADDR"); addr != "" {
		provider, err := vault.New(vault.Config{
			Address:    addr,
			AuthMethod: os.Getenv("VAULT_AUTH_METHOD"),
			RoleID:     os.Getenv("VAULT_ROLE_ID"),
			SecretID:   os.Getenv("VAULT_SECRET_ID"),
			CACert:     os.Getenv("VAULT_CACERT"),
			ClientCert: os.Getenv("VAULT_CLIENT_CERT"),
			ClientKey:  os.Getenv("VAULT_CLIENT_KEY"),
		})
		if err != nil {
			return nil, fmt.Errorf("vault provider: %w", err)
		}
		m.Register("vault", secret.NewCachedProvider(provider, 5*time.Minute))
		logger.Info("vault secret provider enabled", "address", addr)
	}

	return m, nil
}

// newRedisClient builds a client from the shared Redis settings.
func newRedisClient(cfg *config.Config) goredis.UniversalClient {
	return goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        redisAddrs(cfg),
		Password:     cfg.Cache.Redis.Password,
		DB:           cfg.Cache.Redis.DB,
		MasterName:   cfg.Cache.Redis.SentinelMaster,
		DialTimeout:  cfg.Cache.Redis.DialTimeout,
		ReadTimeout:  cfg.Cache.Redis.ReadTimeout,
		WriteTimeout: cfg.Cache.Redis.WriteTimeout,
		PoolSize:     cfg.Cache.Redis.PoolSize,
		MinIdleConns: cfg.Cache.Redis.MinIdleConns,
		MaxRetries:   cfg.Cache.Redis.MaxRetries,
	})
}

func redisAddrs(cfg *config.Config) []string {
	switch {
	case len(cfg.Cache.Redis.ClusterAddrs) > 0:
		return cfg.Cache.Redis.ClusterAddrs
	case len(cfg.Cache.Redis.SentinelAddrs) > 0:
		return cfg.Cache.Redis.SentinelAddrs
	default:
		return []string{cfg.Cache.Redis.Addr}
	}
}

func newListenerStore(cfg *config.Config, logger *slog.Logger) (listener.Store, error) {
	switch cfg.Listeners.Store {
	case "", "memory":
		return listener.NewMemoryStore(), nil
	case "redis":
		logger.Info("listener registry backed by redis")
		return listener.NewRedisStore(newRedisClient(cfg), ""), nil
	default:
		return nil, fmt.Errorf("unsupported listener store: %s", cfg.Listeners.Store)
	}
}

func newAuthStore(ctx context.Context, cfg *config.Config, secrets *secret.Manager, logger *slog.Logger) (auth.Store, error) {
	switch cfg.Auth.Store {
	case "", "memory":
		return auth.NewMemoryStore(), nil
	case "postgres":
		password, err := secrets.Get(ctx, cfg.Auth.Postgres.Password)
		if err != nil {
			return nil, fmt.Errorf("resolve postgres password: %w", err)
		}

		pgCfg := auth.DefaultPostgresConfig()
		pgCfg.Host = cfg.Auth.Postgres.Host
		pgCfg.Port = cfg.Auth.Postgres.Port
		pgCfg.User = cfg.Auth.Postgres.User
		pgCfg.Password = password
		pgCfg.Database = cfg.Auth.Postgres.Database
		pgCfg.SSLMode = cfg.Auth.Postgres.SSLMode

		store, err := auth.NewPostgresStore(pgCfg)
		if err != nil {
			return nil, err
		}
		logger.Info("api key store backed by postgres",
			"host", pgCfg.Host, "database", pgCfg.Database)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported auth store: %s", cfg.Auth.Store)
	}
}
