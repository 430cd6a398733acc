package container

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/katalog/internal/svc/apprepo"
	"github.com/yusufsyaifudin/katalog/internal/svc/notifysvc"
	"github.com/yusufsyaifudin/katalog/internal/svc/reportrepo"
	"github.com/yusufsyaifudin/katalog/pkg/cache"
	"github.com/yusufsyaifudin/katalog/pkg/multidb"
	"golang.org/x/crypto/bcrypt"
)

type fakeMultiDB struct {
	db      *sqlx.DB
	pingErr error
}

func (f *fakeMultiDB) GetSqlx(driver multidb.Driver, key string) (*sqlx.DB, error) {
	if driver != multidb.Postgres || key != "default" {
		return nil, fmt.Errorf("key %s is not exist on db list", key)
	}

	return f.db, nil
}

func (f *fakeMultiDB) Ping(context.Context) error { return f.pingErr }

func (f *fakeMultiDB) Close() error { return nil }

func newTestRepositories(t *testing.T, cacheConf ConfigCache) (*RepositoryImpl, *fakeMultiDB) {
	t.Helper()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	mdb := &fakeMultiDB{db: sqlx.NewDb(db, "postgres")}
	repos := newRepositories(ConfigDatabaseResources{
		"default": {Driver: "postgres"},
		"legacy":  {Driver: "mysql"},
	}, mdb, cacheConf)

	return repos, mdb
}

func TestRepositoryImpl_AppRepo(t *testing.T) {
	t.Run("without cache", func(t *testing.T) {
		repos, _ := newTestRepositories(t, ConfigCache{Type: "disable"})

		repo, err := repos.AppRepo("default")
		require.NoError(t, err)
		assert.IsType(t, &apprepo.RepoPostgres{}, repo)
	})

	t.Run("with cache", func(t *testing.T) {
		repos, _ := newTestRepositories(t, ConfigCache{Type: "inmemory"})
		inMem, err := cache.NewInMemory()
		require.NoError(t, err)
		repos.cache = inMem

		repo, err := repos.AppRepo("default")
		require.NoError(t, err)

		cached, ok := repo.(*apprepo.CachedRepo)
		require.True(t, ok)
		assert.Equal(t, defaultCacheExpiry, cached.Config.CacheExpiry)
		assert.Equal(t, "katalog", cached.Config.CachePrefixKey)
	})

	t.Run("unknown label", func(t *testing.T) {
		repos, _ := newTestRepositories(t, ConfigCache{Type: "disable"})

		_, err := repos.AppRepo("nope")
		assert.Error(t, err)
	})

	t.Run("unsupported driver", func(t *testing.T) {
		repos, _ := newTestRepositories(t, ConfigCache{Type: "disable"})

		_, err := repos.AppRepo("legacy")
		assert.Error(t, err)
	})
}

func TestRepositoryImpl_ReportRepo(t *testing.T) {
	repos, _ := newTestRepositories(t, ConfigCache{Type: "disable"})

	repo, err := repos.ReportRepo("default")
	require.NoError(t, err)
	assert.IsType(t, &reportrepo.RepoPostgres{}, repo)

	_, err = repos.ReportRepo("legacy")
	assert.Error(t, err)
}

func TestRepositoryImpl_Ping(t *testing.T) {
	repos, mdb := newTestRepositories(t, ConfigCache{Type: "disable"})
	assert.NoError(t, repos.Ping(context.Background()))

	mdb.pingErr = errors.New("down")
	assert.Error(t, repos.Ping(context.Background()))
}

func TestRepositoryImpl_Close(t *testing.T) {
	var order []string
	closer := func(name string, err error) *NamedCloser {
		return &NamedCloser{name: name, close: func() error {
			order = append(order, name)
			return err
		}}
	}

	repos, _ := newTestRepositories(t, ConfigCache{Type: "disable"})
	repos.closer = append(repos.closer,
		closer("sql", nil),
		closer("redis", errors.New("boom")),
	)

	err := repos.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
	assert.Equal(t, []string{"redis", "sql"}, order)

	var nilRepos *RepositoryImpl
	assert.NoError(t, nilRepos.Close())
}

func testServicesConfig(t *testing.T) ConfigServices {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	return ConfigServices{
		App:    ConfigServiceApp{DBLabel: "default"},
		Report: ConfigServiceReport{DBLabel: "default"},
		Auth: ConfigServiceAuth{
			PasswordHash: string(hash),
			Secret:       "0123456789abcdef0123456789abcdef",
			TTL:          time.Hour,
			Issuer:       "katalog",
		},
	}
}

func TestSetupServices(t *testing.T) {
	t.Run("nil repositories", func(t *testing.T) {
		_, err := SetupServices(testServicesConfig(t), nil)
		assert.Error(t, err)
	})

	t.Run("notifications disabled", func(t *testing.T) {
		repos, _ := newTestRepositories(t, ConfigCache{Type: "disable"})

		svc, err := SetupServices(testServicesConfig(t), repos)
		require.NoError(t, err)
		t.Cleanup(func() {
			assert.NoError(t, svc.Close())
		})

		assert.NotNil(t, svc.App())
		assert.NotNil(t, svc.Report())
		assert.NotNil(t, svc.Auth())
		assert.IsType(t, notifysvc.Noop{}, svc.Notifier())
	})

	t.Run("push notifications", func(t *testing.T) {
		repos, _ := newTestRepositories(t, ConfigCache{Type: "disable"})

		cfg := testServicesConfig(t)
		cfg.Notify = ConfigServiceNotify{
			MachineID: 1,
			Push: ConfigServicePush{
				Enable:    true,
				ServerKey: "server-key",
				Topic:     "moderators",
			},
		}

		svc, err := SetupServices(cfg, repos)
		require.NoError(t, err)

		assert.IsType(t, &notifysvc.Dispatcher{}, svc.Notifier())
		assert.Len(t, svc.closer, 1)
		assert.NoError(t, svc.Close())
		assert.NoError(t, svc.Close())
	})

	t.Run("unknown report db", func(t *testing.T) {
		repos, _ := newTestRepositories(t, ConfigCache{Type: "disable"})

		cfg := testServicesConfig(t)
		cfg.Report.DBLabel = "nope"

		_, err := SetupServices(cfg, repos)
		assert.Error(t, err)
	})

	t.Run("bad password hash", func(t *testing.T) {
		repos, _ := newTestRepositories(t, ConfigCache{Type: "disable"})

		cfg := testServicesConfig(t)
		cfg.Auth.PasswordHash = "plain"

		_, err := SetupServices(cfg, repos)
		assert.Error(t, err)
	})
}

func TestRepositoryImpl_SetupBroadcast(t *testing.T) {
	s := miniredis.RunT(t)
	conf := ConfigCache{
		Type:      "inmemory",
		Broadcast: ConfigCacheBroadcast{Enable: true},
		Redis:     ConfigRedis{Mode: "single", Address: []string{s.Addr()}},
	}

	repos, _ := newTestRepositories(t, conf)
	local, err := cache.NewInMemory()
	require.NoError(t, err)

	c, err := repos.setupBroadcast(context.Background(), local, conf)
	require.NoError(t, err)
	assert.IsType(t, &cache.Broadcast{}, c)
	require.Len(t, repos.closer, 2)
	assert.Equal(t, "redis broadcast", repos.closer[0].Name())
	assert.Equal(t, "pubsub", repos.closer[1].Name())

	assert.NoError(t, repos.Close())
}

func TestRepositoryImpl_SetupBroadcastNoRedis(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	conf := ConfigCache{
		Type:      "inmemory",
		Broadcast: ConfigCacheBroadcast{Enable: true},
		Redis:     ConfigRedis{Mode: "single", Address: []string{addr}},
	}

	repos, _ := newTestRepositories(t, conf)
	local, err := cache.NewInMemory()
	require.NoError(t, err)

	_, err = repos.setupBroadcast(context.Background(), local, conf)
	assert.Error(t, err)
	assert.Empty(t, repos.closer)
}
