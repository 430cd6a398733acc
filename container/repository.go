package container

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/yusufsyaifudin/katalog/internal/svc/apprepo"
	"github.com/yusufsyaifudin/katalog/internal/svc/reportrepo"
	"github.com/yusufsyaifudin/katalog/pkg/cache"
	"github.com/yusufsyaifudin/katalog/pkg/multidb"
	"github.com/yusufsyaifudin/katalog/pkg/pubsub"
	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/multierr"
)

const (
	defaultCacheExpiry      = time.Minute
	defaultBroadcastChannel = "katalog:cache:invalidate"
)

// Repositories is an abstraction layer to list down all repositories.
// This only will connect and save the repository.
// To use this, you must select the db label based on config file
type Repositories interface {
	io.Closer

	Ping(ctx context.Context) error
	AppRepo(dbLabel string) (apprepo.Repo, error)
	ReportRepo(dbLabel string) (reportrepo.Repo, error)
}

// RepositoryImpl the real implementation of Repositories
type RepositoryImpl struct {
	dbResourceMap ConfigDatabaseResources
	dbSqlConn     multidb.MultiDB // all database connection
	cacheConf     ConfigCache
	cache         cache.Cache // nil when the cache is disabled
	closer        []Closer
}

// Ensure that RepositoryImpl implements RepositoryImpl
var _ Repositories = (*RepositoryImpl)(nil)

// SetupRepositories return pointer because it heavily used.
// This will initialize all required dependencies to run.
// This will return RepositoryImpl instead Repositories,
// the reason is when SetupRepositories called it must be close in deferred mode, any passed value using interface
// won't let user Close any dependencies during run-time.
func SetupRepositories(ctx context.Context, dbConf ConfigDatabaseResources, cacheConf ConfigCache) (*RepositoryImpl, error) {
	sqlDbConfig := multidb.DatabaseResources{}
	for name, conn := range dbConf {
		sqlDbConfig[name] = multidb.DatabaseResource{
			Disable:  conn.Disable,
			Driver:   multidb.Driver(conn.Driver),
			Postgres: multidb.GoSqlDb(conn.Postgres),
		}
	}

	dbSqlConn, err := multidb.NewSqlDbConnMaker(multidb.SqlDbConnMakerConfig{Config: sqlDbConfig})
	if err != nil {
		return nil, err
	}

	repos := newRepositories(dbConf, dbSqlConn, cacheConf)
	repos.closer = append(repos.closer, NewNamedCloser("sql", dbSqlConn))

	switch cacheConf.Type {
	case "inmemory":
		opts := make([]cache.InMemoryOption, 0)
		if cacheConf.MaxBytes > 0 {
			opts = append(opts, cache.WithMaxBytes(cacheConf.MaxBytes))
		}

		local, _err := cache.NewInMemory(opts...)
		if _err != nil {
			err = _err
			break
		}

		if !cacheConf.Broadcast.Enable {
			repos.cache = local
			break
		}

		repos.cache, err = repos.setupBroadcast(ctx, local, cacheConf)

	case "redis":
		redisClient, _err := NewRedisClient(ctx, cacheConf.Redis)
		if _err != nil {
			err = _err
			break
		}

		repos.closer = append(repos.closer, NewNamedCloser("redis", redisClient))
		repos.cache, err = cache.NewRedis(cache.RedisConfig{DB: redisClient})
	}

	if err != nil {
		if _err := repos.Close(); _err != nil {
			err = multierr.Append(err, _err)
		}

		return nil, fmt.Errorf("cache preparation: %w", err)
	}

	return repos, nil
}

// setupBroadcast registers its closers on repos, so a failure here is cleaned up by repos.Close.
func (r *RepositoryImpl) setupBroadcast(ctx context.Context, local cache.Cache, cacheConf ConfigCache) (cache.Cache, error) {
	redisClient, err := NewRedisClient(ctx, cacheConf.Redis)
	if err != nil {
		return nil, err
	}

	r.closer = append(r.closer, NewNamedCloser("redis broadcast", redisClient))

	channel := cacheConf.Broadcast.Channel
	if channel == "" {
		channel = defaultBroadcastChannel
	}

	ps, err := pubsub.NewRedis(pubsub.RedisConfig{
		Client:  redisClient,
		Channel: channel,
	})
	if err != nil {
		return nil, err
	}

	// registered after the client, so subscriptions close first
	r.closer = append(r.closer, NewNamedFunc("pubsub", func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _err := ps.Shutdown(shutdownCtx); _err != nil {
			ylog.Error(shutdownCtx, "pubsub shutdown failed", ylog.KV("error", _err))
		}
	}))

	return cache.NewBroadcast(ctx, cache.BroadcastConfig{
		Local:      local,
		Publisher:  ps,
		Subscriber: ps,
	})
}

func newRepositories(dbConf ConfigDatabaseResources, dbSqlConn multidb.MultiDB, cacheConf ConfigCache) *RepositoryImpl {
	return &RepositoryImpl{
		dbResourceMap: dbConf,
		dbSqlConn:     dbSqlConn,
		cacheConf:     cacheConf,
		closer:        make([]Closer, 0),
	}
}

// Ping checks every enabled database.
func (r *RepositoryImpl) Ping(ctx context.Context) error {
	return r.dbSqlConn.Ping(ctx)
}

// AppRepo return apprepo.Repo and return error when connection is closed or nil.
// The public listing is served through the cache when one is configured.
func (r *RepositoryImpl) AppRepo(dbLabel string) (appRepo apprepo.Repo, err error) {
	repoConnInfo, ok := r.dbResourceMap[dbLabel]
	if !ok {
		err = fmt.Errorf("unknown database key %s on appRepo", dbLabel)
		return
	}

	switch sqlDriver := multidb.Driver(repoConnInfo.Driver); sqlDriver {
	case multidb.Postgres:
		sqlConn, _err := r.dbSqlConn.GetSqlx(sqlDriver, dbLabel)
		if _err != nil {
			err = _err
			return
		}

		appRepo, err = apprepo.Postgres(apprepo.RepoPostgresConfig{
			Connection: sqlConn,
		})

	default:
		err = fmt.Errorf("not supported db driver '%s' on label '%s'", sqlDriver, dbLabel)
		return
	}

	if err != nil || r.cache == nil {
		return
	}

	expiry := r.cacheConf.Expiry
	if expiry <= 0 {
		expiry = defaultCacheExpiry
	}

	prefix := r.cacheConf.PrefixKey
	if prefix == "" {
		prefix = "katalog"
	}

	appRepo, err = apprepo.NewCached(apprepo.CachedConfig{
		Persistent:     appRepo,
		CacheExpiry:    expiry,
		CachePrefixKey: prefix,
		Cache:          r.cache,
	})
	return
}

func (r *RepositoryImpl) ReportRepo(dbLabel string) (repo reportrepo.Repo, err error) {
	repoConnInfo, ok := r.dbResourceMap[dbLabel]
	if !ok {
		err = fmt.Errorf("unknown database key %s on reportRepo", dbLabel)
		return
	}

	switch sqlDriver := multidb.Driver(repoConnInfo.Driver); sqlDriver {
	case multidb.Postgres:
		sqlConn, _err := r.dbSqlConn.GetSqlx(sqlDriver, dbLabel)
		if _err != nil {
			err = _err
			return
		}

		repo, err = reportrepo.Postgres(reportrepo.RepoPostgresConfig{
			Connection: sqlConn,
		})
		return

	default:
		err = fmt.Errorf("not supported db driver '%s' on label '%s'", sqlDriver, dbLabel)
		return
	}
}

// Close will close all dependencies, in the reverse order they were opened.
func (r *RepositoryImpl) Close() error {
	if r == nil {
		return nil
	}

	ctx := context.Background()

	var err error
	for i := len(r.closer) - 1; i >= 0; i-- {
		c := r.closer[i]
		if c == nil {
			continue
		}

		if _err := c.Close(); _err != nil {
			err = multierr.Append(err, fmt.Errorf("close %s error: %w", c.Name(), _err))
			continue
		}

		ylog.Debug(ctx, fmt.Sprintf("repositories: %s success to close", c.Name()))
	}

	return err
}
