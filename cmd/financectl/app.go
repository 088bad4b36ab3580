package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sas-finance/service_layer/infra/supabase"
	"github.com/sas-finance/service_layer/internal/backend"
	"github.com/sas-finance/service_layer/internal/cli"
	"github.com/sas-finance/service_layer/internal/config"
	"github.com/sas-finance/service_layer/internal/filestore"
	"github.com/sas-finance/service_layer/internal/finance"
	"github.com/sas-finance/service_layer/internal/identity"
	"github.com/sas-finance/service_layer/internal/repository"
	"github.com/sas-finance/service_layer/internal/session"
	"github.com/sas-finance/service_layer/pkg/logger"
)

// app holds every wired component a command may need.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	out      *cli.Printer
	registry *prometheus.Registry

	cache    *session.Cache
	identity *identity.Service
	finance  *finance.Service
	repos    finance.Repositories
	files    *filestore.Store

	closers []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.WithError(err).Warn("close failed")
		}
	}
}

// backends groups the remote collaborators so tests can swap in backend.Memory.
type backends struct {
	auth backend.Auth
	data backend.Data
	blob backend.Blob
}

// newApp connects to Supabase with the configured session store.
func newApp(ctx context.Context, cfg *config.Config, out *cli.Printer) (*app, error) {
	log := logger.New("financectl", logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	store, closeStore, err := openStore(cfg.Session)
	if err != nil {
		return nil, err
	}
	cache := session.NewCache(store, log.Named("session"))
	if err := cache.Load(ctx); err != nil {
		log.WithError(err).Warn("session could not be restored")
	}

	registry := prometheus.NewRegistry()
	metrics, err := supabase.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	sbCfg := supabase.Config{
		ProjectURL: cfg.Supabase.URL,
		AnonKey:    cfg.Supabase.AnonKey,
		Timeout:    cfg.Supabase.Timeout,
		Metrics:    metrics,
	}
	if cfg.Supabase.Retries > 0 {
		retry := supabase.DefaultRetryConfig()
		retry.MaxRetries = cfg.Supabase.Retries
		sbCfg.Retry = &retry
	}
	client, err := supabase.New(sbCfg)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	remote := backend.NewSupabase(client, backend.WithCredentials(cache))

	a := wire(cfg, backends{auth: remote, data: remote, blob: remote}, cache, out, log)
	a.registry = registry
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}
	return a, nil
}

func openStore(cfg config.SessionConfig) (session.Store, func() error, error) {
	switch cfg.Backend {
	case config.SessionMemory:
		return session.NewMemoryStore(), nil, nil
	case config.SessionRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return session.NewRedisStore(client, cfg.RedisPrefix, cfg.TTL), client.Close, nil
	case config.SessionFile:
		return session.NewFileStore(cfg.Path), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// wire builds the services on top of already-open backends and cache.
func wire(cfg *config.Config, b backends, cache *session.Cache, out *cli.Printer, log *logger.Logger) *app {
	ident := identity.New(b.auth, b.data, cache,
		identity.WithLogger(log.Named("identity")),
		identity.WithRedirector(identity.RedirectFunc(func() {
			out.Info("Pour vous reconnecter : financectl login")
		})),
	)

	repoLog := log.Named("repository")
	repos := finance.Repositories{
		Members:        repository.NewMembers(b.data, cache, repoLog),
		Transactions:   repository.NewTransactions(b.data, repoLog),
		Reimbursements: repository.NewReimbursements(b.data, repoLog),
		Messages:       repository.NewMessages(b.data, repoLog),
		Settings:       repository.NewSettings(b.data, repoLog),
		Notifications:  repository.NewNotifications(b.data, repoLog),
	}

	return &app{
		cfg:      cfg,
		log:      log,
		out:      out,
		registry: prometheus.NewRegistry(),
		cache:    cache,
		identity: ident,
		finance:  finance.New(ident, repos, finance.WithLogger(log.Named("finance"))),
		repos:    repos,
		files:    filestore.New(b.blob, cfg.Storage.Bucket, filestore.WithLogger(log.Named("filestore"))),
	}
}
