package apprepo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yusufsyaifudin/katalog/pkg/cache"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
)

type CachedConfig struct {
	Persistent     Repo          `validate:"required"`
	CacheExpiry    time.Duration `validate:"required"`
	CachePrefixKey string        `validate:"required,alphanum"`
	Cache          cache.Cache   `validate:"required"`
}

// CachedRepo caches the public listing, the only read that every visitor hits.
// Admin reads always go to the persistent store. Every write drops the cached listing.
//
// gen counts invalidations. A listing read from the persistent store is only
// cached when no invalidation happened since the read started, otherwise a
// snapshot taken before a write could be stored after the write dropped the key.
type CachedRepo struct {
	Config CachedConfig

	mu  sync.Mutex
	gen uint64
}

var _ Repo = (*CachedRepo)(nil)

func NewCached(cfg CachedConfig) (*CachedRepo, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, err
	}

	c := &CachedRepo{
		Config: cfg,
	}

	if w, ok := cfg.Cache.(cache.Watcher); ok {
		w.OnRemoteDelete(c.onRemoteDelete)
	}

	return c, nil
}

func (c *CachedRepo) ListApproved(ctx context.Context) (out OutList, err error) {
	var apps []App
	err = c.Config.Cache.GetAs(ctx, c.approvedKey(), &apps)
	if err == nil {
		ylog.Debug(ctx, "list approved apps from cache", ylog.KV("total", len(apps)))
		out = OutList{Apps: apps}
		return
	}

	if !errors.Is(err, cache.ErrKeyNotExist) {
		ylog.Error(ctx, "get approved apps from cache error, fallback to persistent store", ylog.KV("error", err))
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	out, err = c.Config.Persistent.ListApproved(ctx)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		ylog.Debug(ctx, "approved apps changed while reading, skip caching")
		return
	}

	if _err := c.Config.Cache.SetExp(ctx, c.approvedKey(), out.Apps, c.Config.CacheExpiry); _err != nil {
		ylog.Error(ctx, "cannot cache approved apps", ylog.KV("error", _err))
	}

	return
}

func (c *CachedRepo) ListAll(ctx context.Context) (out OutList, err error) {
	return c.Config.Persistent.ListAll(ctx)
}

func (c *CachedRepo) Create(ctx context.Context, in InputCreate) (out OutCreate, err error) {
	out, err = c.Config.Persistent.Create(ctx, in)
	if err != nil {
		return
	}

	c.invalidate(ctx)
	return
}

func (c *CachedRepo) Update(ctx context.Context, in InputUpdate) (out OutUpdate, err error) {
	out, err = c.Config.Persistent.Update(ctx, in)
	if err != nil {
		return
	}

	c.invalidate(ctx)
	return
}

func (c *CachedRepo) Delete(ctx context.Context, in InputDelete) (out OutDelete, err error) {
	out, err = c.Config.Persistent.Delete(ctx, in)
	if err != nil {
		return
	}

	c.invalidate(ctx)
	return
}

func (c *CachedRepo) IncrementClicks(ctx context.Context, in InputIncrementClicks) (out OutIncrementClicks, err error) {
	out, err = c.Config.Persistent.IncrementClicks(ctx, in)
	if err != nil {
		return
	}

	c.invalidate(ctx)
	return
}

func (c *CachedRepo) SetApproval(ctx context.Context, in InputSetApproval) (out OutSetApproval, err error) {
	out, err = c.Config.Persistent.SetApproval(ctx, in)
	if err != nil {
		return
	}

	c.invalidate(ctx)
	return
}

// -- cache

func (c *CachedRepo) approvedKey() string {
	return fmt.Sprintf("%s:approved", c.Config.CachePrefixKey)
}

// invalidate never fails the write, a stale entry lives at most CacheExpiry.
func (c *CachedRepo) invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if err := c.Config.Cache.Delete(ctx, c.approvedKey()); err != nil {
		ylog.Error(ctx, "cannot invalidate approved apps cache", ylog.KV("error", err))
	}
}

// onRemoteDelete runs before a peer's delete reaches the local cache.
func (c *CachedRepo) onRemoteDelete(_ context.Context, keys []string) {
	for _, k := range keys {
		if k != c.approvedKey() {
			continue
		}

		c.mu.Lock()
		c.gen++
		c.mu.Unlock()
		return
	}
}
