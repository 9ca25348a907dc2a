// Package app initializes and holds long-lived infrastructure providers: the
// document store and the activity publisher.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-edge/internal/config"
	pubsubpublisher "github.com/JakeFAU/newsroom-edge/internal/publisher/pubsub"
	"github.com/JakeFAU/newsroom-edge/internal/site"
	"github.com/JakeFAU/newsroom-edge/internal/store/memory"
	"github.com/JakeFAU/newsroom-edge/internal/store/postgres"
	"github.com/JakeFAU/newsroom-edge/internal/store/sqlite"
)

// StoreProvider is a document store with a lifecycle.
type StoreProvider interface {
	site.DocumentStore
	Ping(ctx context.Context) error
	Close() error
}

// Migrator is implemented by stores that own a schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// PublisherProvider publishes activity batches and owns its client.
type PublisherProvider interface {
	site.Publisher
	Close() error
}

// Connector opens external services. Tests replace it with a mock.
type Connector interface {
	Postgres(ctx context.Context, cfg postgres.Config) (StoreProvider, error)
	PubSub(ctx context.Context, projectID string) (PublisherProvider, error)
}

// DefaultConnector dials the real Postgres and Pub/Sub services.
type DefaultConnector struct{}

// Postgres connects a pgx pool.
func (DefaultConnector) Postgres(ctx context.Context, cfg postgres.Config) (StoreProvider, error) {
	store, err := postgres.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	return postgresProvider{Store: store}, nil
}

// PubSub creates a Pub/Sub client using application default credentials.
func (DefaultConnector) PubSub(ctx context.Context, projectID string) (PublisherProvider, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return pubsubpublisher.New(client), nil
}

// App holds the shared infrastructure providers. Publisher is nil when no
// Pub/Sub project is configured.
type App struct {
	Logger    *zap.Logger
	Store     StoreProvider
	Publisher PublisherProvider
}

// NewApp selects and opens the providers named by cfg. It fails fast if any
// provider cannot be initialized.
func NewApp(ctx context.Context, cfg config.Config, connector Connector, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if connector == nil {
		connector = DefaultConnector{}
	}
	l := logger.Named("app")
	l.Info("initializing application services")

	a := &App{Logger: logger}

	switch cfg.Store.Backend {
	case config.StoreMemory:
		store, err := openMemory(cfg.Store.SeedFile)
		if err != nil {
			return nil, err
		}
		l.Info("using in-memory document store", zap.String("seed_file", cfg.Store.SeedFile))
		a.Store = store
	case config.StorePostgres:
		if cfg.DB.DSN == "" {
			return nil, errors.New("store backend is 'postgres' but db.dsn is not set")
		}
		l.Info("connecting to PostgreSQL")
		store, err := connector.Postgres(ctx, postgres.Config{
			DSN:             cfg.DB.DSN,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: cfg.DB.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize store: %w", err)
		}
		a.Store = store
	case config.StoreSQLite:
		if cfg.Store.SQLitePath == "" {
			return nil, errors.New("store backend is 'sqlite' but store.sqlite_path is not set")
		}
		l.Info("opening SQLite document store", zap.String("path", cfg.Store.SQLitePath))
		store, err := openSQLite(ctx, cfg.Store.SQLitePath, cfg.Store.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize store: %w", err)
		}
		a.Store = store
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}

	if cfg.PubSub.ProjectID == "" {
		l.Info("no Pub/Sub project configured, activity will not be published")
	} else {
		l.Info("connecting to GCP Pub/Sub",
			zap.String("project", cfg.PubSub.ProjectID),
			zap.String("topic", cfg.PubSub.TopicName),
		)
		publisher, err := connector.PubSub(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize publisher: %w", err)
		}
		a.Publisher = publisher
	}

	l.Info("application services initialized")
	return a, nil
}

// Close shuts down every provider, logging failures.
func (a *App) Close() {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			logger.Warn("error closing publisher", zap.Error(err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			logger.Warn("error closing store", zap.Error(err))
		}
	}
}

func openMemory(seedFile string) (StoreProvider, error) {
	if seedFile == "" {
		return memoryProvider{Store: memory.New()}, nil
	}
	store, err := memory.NewFromFile(seedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load seed file: %w", err)
	}
	return memoryProvider{Store: store}, nil
}

// openSQLite opens the database file and imports seedFile when one is set.
func openSQLite(ctx context.Context, path, seedFile string) (StoreProvider, error) {
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if seedFile == "" {
		return store, nil
	}
	if err := importSeed(ctx, store, seedFile); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load seed file: %w", err)
	}
	return store, nil
}

func importSeed(ctx context.Context, store *sqlite.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	seed, err := memory.DecodeSeed(f)
	if err != nil {
		return err
	}
	return store.Import(ctx, seed.Articles, seed.Videos, seed.Categories)
}

type memoryProvider struct {
	*memory.Store
}

func (memoryProvider) Ping(context.Context) error { return nil }

func (memoryProvider) Close() error { return nil }

type postgresProvider struct {
	*postgres.Store
}

func (p postgresProvider) Close() error {
	p.Store.Close()
	return nil
}
