package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-edge/internal/app"
	"github.com/JakeFAU/newsroom-edge/internal/config"
	"github.com/JakeFAU/newsroom-edge/internal/site"
	"github.com/JakeFAU/newsroom-edge/internal/store/postgres"
)

func baseConfig() config.Config {
	return config.Config{
		Store:  config.StoreConfig{Backend: config.StoreMemory},
		PubSub: config.PubSubConfig{TopicName: "newsroom-activity"},
	}
}

func TestNewApp_MemoryDefaults(t *testing.T) {
	t.Parallel()

	conn := new(MockConnector)
	a, err := app.NewApp(context.Background(), baseConfig(), conn, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, a.Store)
	assert.Nil(t, a.Publisher)
	require.NoError(t, a.Store.Ping(context.Background()))

	_, err = a.Store.GetVideo(context.Background(), "missing", 0)
	require.ErrorIs(t, err, site.ErrNotFound)
	conn.AssertExpectations(t)
	a.Close()
}

func TestNewApp_MemorySeedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"videos":[{"id":"v1","title":"Clip","views":3}]}`), 0o600))

	cfg := baseConfig()
	cfg.Store.SeedFile = path
	a, err := app.NewApp(context.Background(), cfg, new(MockConnector), zap.NewNop())
	require.NoError(t, err)

	views, err := a.Store.IncrementViews(context.Background(), "v1")
	require.NoError(t, err)
	require.Equal(t, int64(4), views)
}

func TestNewApp_PostgresAndPubSub(t *testing.T) {
	t.Parallel()

	store := new(MockStore)
	publisher := new(MockPublisher)
	conn := new(MockConnector)
	conn.On("Postgres", mock.Anything, postgres.Config{DSN: "postgres://x", MaxConns: 4}).Return(store, nil).Once()
	conn.On("PubSub", mock.Anything, "proj").Return(publisher, nil).Once()

	cfg := baseConfig()
	cfg.Store.Backend = config.StorePostgres
	cfg.DB = config.DBConfig{DSN: "postgres://x", MaxConns: 4}
	cfg.PubSub.ProjectID = "proj"

	a, err := app.NewApp(context.Background(), cfg, conn, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, store, a.Store)
	assert.Same(t, publisher, a.Publisher)
	conn.AssertExpectations(t)
}

func TestNewApp_SQLiteSeeded(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(`{"videos":[{"id":"v1","title":"Clip","views":3}]}`), 0o600))

	cfg := baseConfig()
	cfg.Store = config.StoreConfig{
		Backend:    config.StoreSQLite,
		SQLitePath: filepath.Join(dir, "data", "newsroom.db"),
		SeedFile:   seed,
	}
	conn := new(MockConnector)
	a, err := app.NewApp(context.Background(), cfg, conn, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Store.Ping(context.Background()))
	views, err := a.Store.IncrementViews(context.Background(), "v1")
	require.NoError(t, err)
	require.Equal(t, int64(4), views)
	_, ok := a.Store.(app.Migrator)
	assert.True(t, ok, "sqlite store owns its schema")
	conn.AssertExpectations(t)
}

func TestNewApp_ConfigErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		mutate        func(*config.Config)
		setup         func(*MockConnector)
		expectedError string
	}{
		{
			name:          "postgres missing DSN",
			mutate:        func(c *config.Config) { c.Store.Backend = config.StorePostgres },
			expectedError: "store backend is 'postgres' but db.dsn is not set",
		},
		{
			name:          "unknown store backend",
			mutate:        func(c *config.Config) { c.Store.Backend = "mongo" },
			expectedError: "unknown store backend: mongo",
		},
		{
			name: "sqlite missing path",
			mutate: func(c *config.Config) {
				c.Store.Backend = config.StoreSQLite
			},
			expectedError: "store backend is 'sqlite' but store.sqlite_path is not set",
		},
		{
			name:          "missing seed file",
			mutate:        func(c *config.Config) { c.Store.SeedFile = "/nonexistent/seed.json" },
			expectedError: "failed to load seed file",
		},
		{
			name: "postgres connect failure",
			mutate: func(c *config.Config) {
				c.Store.Backend = config.StorePostgres
				c.DB.DSN = "postgres://x"
			},
			setup: func(m *MockConnector) {
				m.On("Postgres", mock.Anything, mock.Anything).Return(nil, errors.New("refused")).Once()
			},
			expectedError: "failed to initialize store: refused",
		},
		{
			name:   "pubsub failure",
			mutate: func(c *config.Config) { c.PubSub.ProjectID = "proj" },
			setup: func(m *MockConnector) {
				m.On("PubSub", mock.Anything, "proj").Return(nil, errors.New("no credentials")).Once()
			},
			expectedError: "failed to initialize publisher: no credentials",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig()
			tc.mutate(&cfg)
			conn := new(MockConnector)
			if tc.setup != nil {
				tc.setup(conn)
			}

			_, err := app.NewApp(context.Background(), cfg, conn, zap.NewNop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectedError)
			conn.AssertExpectations(t)
		})
	}
}

func TestApp_Close(t *testing.T) {
	t.Parallel()

	store := new(MockStore)
	publisher := new(MockPublisher)
	store.On("Close").Return(nil).Once()
	publisher.On("Close").Return(nil).Once()

	a := &app.App{Logger: zap.NewNop(), Store: store, Publisher: publisher}
	a.Close()

	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestApp_Close_WithErrors(t *testing.T) {
	t.Parallel()

	store := new(MockStore)
	publisher := new(MockPublisher)
	store.On("Close").Return(errors.New("db error")).Once()
	publisher.On("Close").Return(errors.New("pubsub error")).Once()

	a := &app.App{Logger: zap.NewNop(), Store: store, Publisher: publisher}
	a.Close()

	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

// MockConnector mocks app.Connector.
type MockConnector struct {
	mock.Mock
}

// Postgres satisfies app.Connector.
func (m *MockConnector) Postgres(ctx context.Context, cfg postgres.Config) (app.StoreProvider, error) {
	args := m.Called(ctx, cfg)
	store, _ := args.Get(0).(app.StoreProvider)
	return store, args.Error(1)
}

// PubSub satisfies app.Connector.
func (m *MockConnector) PubSub(ctx context.Context, projectID string) (app.PublisherProvider, error) {
	args := m.Called(ctx, projectID)
	publisher, _ := args.Get(0).(app.PublisherProvider)
	return publisher, args.Error(1)
}

// MockStore mocks app.StoreProvider.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindArticles(ctx context.Context, q site.ArticleQuery) ([]site.Article, error) {
	args := m.Called(ctx, q)
	articles, _ := args.Get(0).([]site.Article)
	return articles, args.Error(1)
}

func (m *MockStore) ArticleBySlug(ctx context.Context, slug string, depth int) (site.Article, error) {
	args := m.Called(ctx, slug, depth)
	article, _ := args.Get(0).(site.Article)
	return article, args.Error(1)
}

func (m *MockStore) GetVideo(ctx context.Context, id string, depth int) (site.Video, error) {
	args := m.Called(ctx, id, depth)
	video, _ := args.Get(0).(site.Video)
	return video, args.Error(1)
}

func (m *MockStore) IncrementViews(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) ListCategories(ctx context.Context, limit int) ([]site.Category, error) {
	args := m.Called(ctx, limit)
	categories, _ := args.Get(0).([]site.Category)
	return categories, args.Error(1)
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) Close() error {
	return m.Called().Error(0)
}

// MockPublisher mocks app.PublisherProvider.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	args := m.Called(ctx, topic, payload)
	return args.String(0), args.Error(1)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}
