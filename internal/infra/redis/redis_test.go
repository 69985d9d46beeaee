package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorlens/api/internal/config"
	"github.com/armorlens/api/pkg/domain/dataset"
	"github.com/armorlens/api/pkg/domain/rule"
	"github.com/armorlens/api/pkg/logger"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromClient(rdb, logger.NewNop()), mr
}

func TestNew_ConnectsAndRetries(t *testing.T) {
	mr := miniredis.RunT(t)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := &config.RedisConfig{
		Host:          mr.Host(),
		Port:          port,
		DialTimeout:   time.Second,
		MaxRetries:    1,
		MinRetryDelay: time.Millisecond,
		MaxRetryDelay: 5 * time.Millisecond,
	}
	c, err := New(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	defer c.Close()
	assert.NoError(t, c.Ping(context.Background()))

	mr.Close()
	_, err = New(context.Background(), cfg, logger.NewNop())
	assert.ErrorContains(t, err, "after 2 attempts")
}

func TestNew_RequiresArguments(t *testing.T) {
	_, err := New(context.Background(), nil, logger.NewNop())
	assert.Error(t, err)
	_, err = New(context.Background(), &config.RedisConfig{}, nil)
	assert.Error(t, err)
}

func TestClient_Del(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("k", "v"))
	require.NoError(t, c.Del(ctx, "k"))
	assert.False(t, mr.Exists("k"))
	assert.NoError(t, c.Del(ctx))
}

func TestCache(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, err := NewCache[int](nil, "p", time.Minute)
	assert.Error(t, err)
	_, err = NewCache[int](c, "", time.Minute)
	assert.Error(t, err)
	_, err = NewCache[int](c, "p", 0)
	assert.Error(t, err)

	cache, err := NewCache[[]string](c, "test", time.Hour)
	require.NoError(t, err)

	_, err = cache.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "a", []string{"x", "y"}))
	assert.True(t, mr.Exists("test:a"))
	assert.Equal(t, time.Hour, mr.TTL("test:a"))

	got, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, *got)

	require.NoError(t, cache.Delete(ctx, "a"))
	_, err = cache.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	mr.Set("test:bad", "{not json")
	_, err = cache.Get(ctx, "bad")
	assert.ErrorContains(t, err, "unmarshal")
}

func TestSnapshotRepository_RoundTrip(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	repo, err := NewSnapshotRepository(c, 168*time.Hour)
	require.NoError(t, err)

	_, err = repo.Load(ctx)
	assert.ErrorIs(t, err, dataset.ErrNoSnapshot)

	rules := []*rule.Rule{
		{ProjectName: "shop", PolicyName: "edge", Status: "deny(403)", Priority: 100, AdaptiveProtection: true},
		{ProjectName: "shop", PolicyName: "edge", Status: "allow", Priority: rule.NoPriority},
	}
	src := dataset.Source{Kind: dataset.SourceKindSheet, Location: "https://docs.google.com/spreadsheets/d/abc/export?format=csv"}
	d, err := dataset.New(src, rules)
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, d, 0))
	assert.Equal(t, 168*time.Hour, mr.TTL(snapshotPrefix+":"+snapshotKey))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, d.ID(), loaded.ID())
	assert.Equal(t, src, loaded.Source())
	assert.True(t, d.LoadedAt().Equal(loaded.LoadedAt()))
	require.Len(t, loaded.Rules(), 2)
	assert.Equal(t, *rules[0], *loaded.Rules()[0])
	assert.Equal(t, int32(rule.NoPriority), loaded.Rules()[1].Priority)

	require.NoError(t, repo.Save(ctx, d, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL(snapshotPrefix+":"+snapshotKey))

	mr.FastForward(2 * time.Minute)
	_, err = repo.Load(ctx)
	assert.ErrorIs(t, err, dataset.ErrNoSnapshot)
}

func TestSnapshotRepository_DeleteAndVersion(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	repo, err := NewSnapshotRepository(c, time.Hour)
	require.NoError(t, err)

	mr.Set(snapshotPrefix+":"+snapshotKey, `{"version":99,"id":"x","rules":[]}`)
	_, err = repo.Load(ctx)
	assert.ErrorIs(t, err, dataset.ErrNoSnapshot)

	d, err := dataset.New(dataset.Source{Kind: dataset.SourceKindUpload}, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, d, 0))
	require.NoError(t, repo.Delete(ctx))
	require.NoError(t, repo.Delete(ctx))

	_, err = repo.Load(ctx)
	assert.ErrorIs(t, err, dataset.ErrNoSnapshot)
}

func TestSnapshotRepository_LoadDropsInvalidRules(t *testing.T) {
	c, mr := newTestClient(t)
	repo, err := NewSnapshotRepository(c, time.Hour)
	require.NoError(t, err)

	mr.Set(snapshotPrefix+":"+snapshotKey, `{"version":1,"id":"6f1c1c0e-6a8e-4a55-9a3c-2b1d2f3e4a5b",`+
		`"source":{"kind":"upload","location":"f.csv"},"loadedAt":"2026-01-01T00:00:00Z",`+
		`"rules":[{"projectName":"a","policyName":"b"},{"projectName":"","policyName":"b"},null]}`)

	d, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, d.Len())
}

func TestRateLimiter(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, err := NewRateLimiter(c, "fetch", 0, time.Minute, logger.NewNop())
	assert.Error(t, err)

	rl, err := NewRateLimiter(c, "fetch", 2, time.Minute, logger.NewNop())
	require.NoError(t, err)

	key := "https://docs.google.com/spreadsheets/d/abc/pub?output=csv"

	res, err := rl.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)

	res, err = rl.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	res, err = rl.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.True(t, res.RetryAt.After(time.Now()))

	other, err := rl.Allow(ctx, "another source")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	for _, k := range mr.Keys() {
		assert.NotContains(t, k, "docs.google.com")
	}
}

func TestBackoff(t *testing.T) {
	cfg := &config.RedisConfig{MinRetryDelay: 100 * time.Millisecond, MaxRetryDelay: time.Second}
	assert.Equal(t, 100*time.Millisecond, backoff(cfg, 0))
	assert.Equal(t, 400*time.Millisecond, backoff(cfg, 2))
	assert.Equal(t, time.Second, backoff(cfg, 5))
}
