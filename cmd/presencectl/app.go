package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/99minutos/presencectl/internal/core/domain"
	"github.com/99minutos/presencectl/internal/core/ports"
	"github.com/99minutos/presencectl/internal/core/service"
	"github.com/99minutos/presencectl/internal/infrastructure/backend"
	"github.com/99minutos/presencectl/internal/infrastructure/config"
	"github.com/99minutos/presencectl/internal/infrastructure/db/filestore"
	"github.com/99minutos/presencectl/internal/infrastructure/db/memory"
	mongostore "github.com/99minutos/presencectl/internal/infrastructure/db/mongo"
	redisstore "github.com/99minutos/presencectl/internal/infrastructure/db/redis"
	"github.com/99minutos/presencectl/internal/infrastructure/queue"
	"github.com/99minutos/presencectl/pkg/logger"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    ports.CredentialStore
	notifier *queue.Notifier
	session  *service.SessionController

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, stderr io.Writer) (*app, error) {
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: stderr})
	a := &app{cfg: cfg, log: log}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	client, err := backend.New(backend.Options{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.RequestTimeout,
	}, store, logger.Component("backend"))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.notifier = queue.NewNotifier(logger.Component("notifier"))
	a.notifier.Subscribe(func(_ context.Context, e domain.SessionEvent) {
		switch e.Kind {
		case domain.EventPresenceFailed:
			fmt.Fprintf(stderr, "warning: presence not registered: %s\n", domain.UserMessage(e.Err))
		case domain.EventForcedLogout:
			fmt.Fprintln(stderr, "Your session has expired. Please log in again.")
		}
	})
	a.notifier.Start(ctx)

	a.session = service.NewSessionController(store, client, client, a.notifier,
		logger.Component("session"))
	return a, nil
}

// Close waits for background registration, flushes pending notifications and
// releases the credential store, in that order.
func (a *app) Close() {
	if a.session != nil {
		a.session.Close()
	}
	if a.notifier != nil {
		a.notifier.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.CredentialStore, func(), error) {
	noop := func() {}

	switch cfg.Credentials.Store {
	case config.StoreMemory:
		return memory.NewCredentialStore(), noop, nil

	case config.StoreRedis:
		client, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return nil, nil, err
		}
		store := redisstore.NewCredentialStore(client, cfg.Redis.KeyPrefix, cfg.Credentials.Key)
		return store, func() { _ = client.Close() }, nil

	case config.StoreMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, nil, err
		}
		store := mongostore.NewCredentialStore(db, cfg.Credentials.Key)
		return store, func() { _ = client.Disconnect(context.WithoutCancel(ctx)) }, nil

	default:
		store, err := filestore.New(cfg.Credentials.File, cfg.Credentials.Key)
		if err != nil {
			return nil, nil, err
		}
		log.Debug().Str("path", store.Path()).Msg("using file credential store")
		return store, noop, nil
	}
}
