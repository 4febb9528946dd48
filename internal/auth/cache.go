package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Invalidator drops cached principal state after an administrative change.
type Invalidator interface {
	Invalidate(ctx context.Context, username string) error
}

const defaultLoadTimeout = 5 * time.Second

// CachedReader is a read-through cache in front of a CredentialReader, used
// by the Gate. Entries live in redis, or in a per-process LRU when built with
// NewLocalCachedReader. Principals it returns never carry a password hash.
//
// A load that overlaps an Invalidate is returned to its callers but never
// written to the cache.
type CachedReader struct {
	next        CredentialReader
	client      *redis.Client
	local       *expirable.LRU[string, Principal]
	ttl         time.Duration
	loadTimeout time.Duration
	prefix      string
	logger      *slog.Logger
	group       singleflight.Group
	generation  atomic.Uint64
}

// NewCachedReader wraps next. A zero ttl disables caching.
func NewCachedReader(next CredentialReader, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedReader{
		next:        next,
		client:      client,
		ttl:         ttl,
		loadTimeout: defaultLoadTimeout,
		prefix:      "emprecords:principal:",
		logger:      logger.With(slog.String("component", "principal_cache")),
	}
}

// NewLocalCachedReader wraps next with an in-process LRU of at most size
// entries. Invalidation only reaches the local process, so peers may serve
// a stale principal for up to ttl.
func NewLocalCachedReader(next CredentialReader, size int, ttl time.Duration, logger *slog.Logger) *CachedReader {
	c := NewCachedReader(next, nil, ttl, logger)
	if ttl > 0 && size > 0 {
		c.local = expirable.NewLRU[string, Principal](size, nil, ttl)
	}
	return c
}

// FindByUsername returns the cached principal or loads and caches it.
// Concurrent misses for the same username share one load.
func (c *CachedReader) FindByUsername(ctx context.Context, username string) (*Principal, error) {
	switch {
	case c.ttl <= 0 || (c.client == nil && c.local == nil):
		return c.load(ctx, username)
	case c.local != nil:
		if p, ok := c.local.Get(username); ok {
			return p.clone(), nil
		}
	default:
		raw, err := c.client.Get(ctx, c.prefix+username).Bytes()
		switch {
		case err == nil:
			var p Principal
			if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
				return &p, nil
			}
			c.logger.Warn("discarding corrupt cache entry", slog.String("username", username))
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("principal cache get", slog.Any("error", err))
		}
	}

	// The load is shared with other callers, so one caller going away
	// must not cancel it for the rest.
	v, err, _ := c.group.Do(username, func() (any, error) {
		gen := c.generation.Load()
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		p, err := c.load(loadCtx, username)
		if err != nil {
			return nil, err
		}
		if c.generation.Load() == gen {
			c.store(loadCtx, username, p)
			if c.generation.Load() != gen {
				c.drop(loadCtx, username)
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Principal).clone(), nil
}

func (c *CachedReader) load(ctx context.Context, username string) (*Principal, error) {
	p, err := c.next.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	p.PasswordHash = ""
	return p, nil
}

// FindByID is not cached.
func (c *CachedReader) FindByID(ctx context.Context, id int64) (*Principal, error) {
	return c.next.FindByID(ctx, id)
}

func (c *CachedReader) store(ctx context.Context, username string, p *Principal) {
	if c.local != nil {
		c.local.Add(username, *p.clone())
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		c.logger.Warn("principal cache encode", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, c.prefix+username, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("principal cache set", slog.Any("error", err))
	}
}

// Invalidate removes the cached entry for username. Loads already in flight
// are detached so later callers read the store again.
func (c *CachedReader) Invalidate(ctx context.Context, username string) error {
	c.generation.Add(1)
	c.group.Forget(username)
	if err := c.remove(ctx, username); err != nil {
		return fmt.Errorf("auth: invalidate principal %s: %w", strconv.Quote(username), err)
	}
	return nil
}

func (c *CachedReader) remove(ctx context.Context, username string) error {
	switch {
	case c.local != nil:
		c.local.Remove(username)
		return nil
	case c.client != nil:
		return c.client.Del(ctx, c.prefix+username).Err()
	}
	return nil
}

func (c *CachedReader) drop(ctx context.Context, username string) {
	if err := c.remove(ctx, username); err != nil {
		c.logger.Warn("principal cache drop", slog.String("username", username), slog.Any("error", err))
	}
}

func (p *Principal) clone() *Principal {
	c := *p
	c.Roles = slices.Clone(p.Roles)
	if p.EmployeeID != nil {
		id := *p.EmployeeID
		c.EmployeeID = &id
	}
	return &c
}

var (
	_ CredentialReader = (*CachedReader)(nil)
	_ Invalidator      = (*CachedReader)(nil)
)
