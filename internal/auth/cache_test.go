package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCacheFixture(t *testing.T, ttl time.Duration) (*CachedReader, *memStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := newMemStore()
	return NewCachedReader(store, client, ttl, discardLogger()), store, mr
}

func TestCachedReaderReadsThrough(t *testing.T) {
	cache, store, mr := newCacheFixture(t, 30*time.Second)
	ctx := context.Background()
	_, err := store.Save(ctx, &Principal{Username: "jdoe", PasswordHash: "secret-hash", Roles: []Role{RoleUser}})
	require.NoError(t, err)

	p, err := cache.FindByUsername(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", p.Username)
	assert.Empty(t, p.PasswordHash)

	cached, err := mr.Get("emprecords:principal:jdoe")
	require.NoError(t, err)
	assert.NotContains(t, cached, "secret-hash")
	assert.Equal(t, 30*time.Second, mr.TTL("emprecords:principal:jdoe"))

	p, err = cache.FindByUsername(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, []Role{RoleUser}, p.Roles)
	assert.Empty(t, p.PasswordHash)
	assert.Equal(t, 1, store.reads)
}

func TestCachedReaderInvalidate(t *testing.T) {
	cache, store, mr := newCacheFixture(t, time.Minute)
	ctx := context.Background()
	saved, err := store.Save(ctx, &Principal{Username: "jdoe", Roles: []Role{RoleUser}})
	require.NoError(t, err)

	_, err = cache.FindByUsername(ctx, "jdoe")
	require.NoError(t, err)

	saved.Disabled = true
	_, err = store.Save(ctx, saved)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "jdoe"))
	assert.False(t, mr.Exists("emprecords:principal:jdoe"))

	p, err := cache.FindByUsername(ctx, "jdoe")
	require.NoError(t, err)
	assert.True(t, p.Disabled)
}

func TestCachedReaderExpires(t *testing.T) {
	cache, store, mr := newCacheFixture(t, time.Second)
	ctx := context.Background()
	_, err := store.Save(ctx, &Principal{Username: "jdoe", Roles: []Role{RoleUser}})
	require.NoError(t, err)

	_, err = cache.FindByUsername(ctx, "jdoe")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)
	_, err = cache.FindByUsername(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, 2, store.reads)
}

func TestCachedReaderDoesNotCacheMisses(t *testing.T) {
	cache, store, mr := newCacheFixture(t, time.Minute)
	ctx := context.Background()

	_, err := cache.FindByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
	assert.False(t, mr.Exists("emprecords:principal:ghost"))

	_, err = store.Save(ctx, &Principal{Username: "ghost", Roles: []Role{RoleUser}})
	require.NoError(t, err)
	_, err = cache.FindByUsername(ctx, "ghost")
	assert.NoError(t, err)
}

func TestCachedReaderSurvivesRedisOutage(t *testing.T) {
	cache, store, mr := newCacheFixture(t, time.Minute)
	ctx := context.Background()
	_, err := store.Save(ctx, &Principal{Username: "jdoe", Roles: []Role{RoleUser}})
	require.NoError(t, err)

	mr.Close()
	p, err := cache.FindByUsername(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", p.Username)
}

func TestCachedReaderConcurrentCallersGetIndependentCopies(t *testing.T) {
	cache, store, _ := newCacheFixture(t, time.Minute)
	ctx := context.Background()
	_, err := store.Save(ctx, &Principal{Username: "jdoe", Roles: []Role{RoleUser}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Principal, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := cache.FindByUsername(ctx, "jdoe")
			if err == nil {
				results[i] = p
			}
		}(i)
	}
	wg.Wait()
	for _, p := range results {
		require.NotNil(t, p)
		assert.Equal(t, "jdoe", p.Username)
	}
	results[0].Username = "mutated"
	assert.Equal(t, "jdoe", results[1].Username)
}

func TestCachedReaderWithoutClientDelegates(t *testing.T) {
	store := newMemStore()
	cache := NewCachedReader(store, nil, time.Minute, nil)
	ctx := context.Background()
	_, err := store.Save(ctx, &Principal{Username: "jdoe", Roles: []Role{RoleUser}})
	require.NoError(t, err)

	_, err = cache.FindByUsername(ctx, "jdoe")
	require.NoError(t, err)
	_, err = cache.FindByUsername(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, 2, store.reads)
	assert.NoError(t, cache.Invalidate(ctx, "jdoe"))
}

func TestLocalCachedReader(t *testing.T) {
	store := newMemStore()
	cache := NewLocalCachedReader(store, 16, time.Minute, discardLogger())
	ctx := context.Background()
	saved, err := store.Save(ctx, &Principal{Username: "jdoe", PasswordHash: "secret-hash", Roles: []Role{RoleUser}})
	require.NoError(t, err)

	p, err := cache.FindByUsername(ctx, "jdoe")
	require.NoError(t, err)
	assert.Empty(t, p.PasswordHash)
	p.Roles[0] = RoleAdmin

	p, err = cache.FindByUsername(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, []Role{RoleUser}, p.Roles)
	assert.Equal(t, 1, store.reads)

	saved.Disabled = true
	_, err = store.Save(ctx, saved)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "jdoe"))

	p, err = cache.FindByUsername(ctx, "jdoe")
	require.NoError(t, err)
	assert.True(t, p.Disabled)
	assert.Equal(t, 2, store.reads)
}

func TestLocalCachedReaderDoesNotCacheMisses(t *testing.T) {
	store := newMemStore()
	cache := NewLocalCachedReader(store, 16, time.Minute, discardLogger())
	ctx := context.Background()

	_, err := cache.FindByUsername(ctx, "ghost")
	require.ErrorIs(t, err, ErrPrincipalNotFound)
	_, err = cache.FindByUsername(ctx, "ghost")
	require.ErrorIs(t, err, ErrPrincipalNotFound)
	assert.Equal(t, 2, store.reads)
}

// gatedReader holds the first lookup after reading the store until release
// is closed, so the caller sees the principal as it was before the gate.
type gatedReader struct {
	next    CredentialReader
	calls   atomic.Int32
	ctx     context.Context
	started chan struct{}
	release chan struct{}
}

func newGatedReader(next CredentialReader) *gatedReader {
	return &gatedReader{next: next, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedReader) FindByUsername(ctx context.Context, username string) (*Principal, error) {
	p, err := g.next.FindByUsername(ctx, username)
	if g.calls.Add(1) == 1 {
		g.ctx = ctx
		close(g.started)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p, err
}

func (g *gatedReader) FindByID(ctx context.Context, id int64) (*Principal, error) {
	return g.next.FindByID(ctx, id)
}

func TestInvalidateDuringLoadIsNotOverwritten(t *testing.T) {
	builders := map[string]func(t *testing.T, next CredentialReader) *CachedReader{
		"redis": func(t *testing.T, next CredentialReader) *CachedReader {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewCachedReader(next, client, time.Minute, discardLogger())
		},
		"local": func(_ *testing.T, next CredentialReader) *CachedReader {
			return NewLocalCachedReader(next, 16, time.Minute, discardLogger())
		},
	}
	for name, build := range builders {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			ctx := context.Background()
			saved, err := store.Save(ctx, &Principal{Username: "jdoe", Roles: []Role{RoleUser}})
			require.NoError(t, err)
			reader := newGatedReader(store)
			cache := build(t, reader)

			inFlight := make(chan *Principal, 1)
			go func() {
				p, _ := cache.FindByUsername(ctx, "jdoe")
				inFlight <- p
			}()
			<-reader.started

			saved.Disabled = true
			_, err = store.Save(ctx, saved)
			require.NoError(t, err)
			require.NoError(t, cache.Invalidate(ctx, "jdoe"))

			fresh := make(chan *Principal, 1)
			go func() {
				p, _ := cache.FindByUsername(ctx, "jdoe")
				fresh <- p
			}()
			select {
			case p := <-fresh:
				require.NotNil(t, p)
				assert.True(t, p.Disabled)
			case <-time.After(2 * time.Second):
				t.Fatal("lookup after invalidate waited on the earlier load")
			}

			close(reader.release)
			stale := <-inFlight
			require.NotNil(t, stale)
			assert.False(t, stale.Disabled)

			p, err := cache.FindByUsername(ctx, "jdoe")
			require.NoError(t, err)
			assert.True(t, p.Disabled)
		})
	}
}

func TestSharedLoadOutlivesCallerCancellation(t *testing.T) {
	store := newMemStore()
	_, err := store.Save(context.Background(), &Principal{Username: "jdoe", Roles: []Role{RoleUser}})
	require.NoError(t, err)
	reader := newGatedReader(store)
	cache := NewLocalCachedReader(reader, 16, time.Minute, discardLogger())

	callerCtx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := cache.FindByUsername(callerCtx, "jdoe")
		first <- err
	}()
	<-reader.started

	second := make(chan error, 1)
	go func() {
		_, err := cache.FindByUsername(context.Background(), "jdoe")
		second <- err
	}()

	cancel()
	require.NoError(t, reader.ctx.Err())
	_, hasDeadline := reader.ctx.Deadline()
	assert.True(t, hasDeadline)

	close(reader.release)
	assert.NoError(t, <-first)
	assert.NoError(t, <-second)
}
