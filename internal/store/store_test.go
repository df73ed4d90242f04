package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagen/tvplayer/internal/cache"
)

func newTestCache(t *testing.T) *cache.Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.New("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.ErrorLevel)
	return l
}

type factory func(t *testing.T, namespace string) Store

func backends(t *testing.T) map[string]factory {
	dir := t.TempDir()
	c := newTestCache(t)
	return map[string]factory{
		"memory": func(_ *testing.T, ns string) Store { return NewMemory(ns) },
		"file":   func(_ *testing.T, ns string) Store { return NewFile(dir, ns) },
		"redis":  func(_ *testing.T, ns string) Store { return NewRedis(c, ns) },
		"cached": func(_ *testing.T, ns string) Store {
			return NewCachedStore(NewFile(filepath.Join(dir, "cached"), ns), c, 0, quietLogger())
		},
	}
}

func TestStore_Conformance(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t, "channels")
			other := newStore(t, "other")
			assert.Equal(t, "channels", s.Namespace())

			_, err := s.Get(ctx, "channel_list")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, "channel_list", `[]`))
			require.NoError(t, s.Put(ctx, "channel_list", `[{"name":"A"}]`))
			require.NoError(t, s.Put(ctx, "extra", "x"))
			require.NoError(t, other.Put(ctx, "channel_list", "kept"))

			v, err := s.Get(ctx, "channel_list")
			require.NoError(t, err)
			assert.Equal(t, `[{"name":"A"}]`, v)

			require.NoError(t, s.Delete(ctx, "extra"))
			require.NoError(t, s.Delete(ctx, "extra"))
			_, err = s.Get(ctx, "extra")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Clear(ctx))
			_, err = s.Get(ctx, "channel_list")
			require.ErrorIs(t, err, ErrNotFound)

			v, err = other.Get(ctx, "channel_list")
			require.NoError(t, err)
			assert.Equal(t, "kept", v)
		})
	}
}

func TestFile_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, NewFile(dir, "channels").Put(ctx, "channel_list", "[1]"))

	reopened := NewFile(dir, "channels")
	v, err := reopened.Get(ctx, "channel_list")
	require.NoError(t, err)
	assert.Equal(t, "[1]", v)
	assert.FileExists(t, reopened.Path())
	assert.NoFileExists(t, reopened.Path()+".tmp")
}

func TestFile_UndecodableFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	s := NewFile(dir, "channels")
	require.NoError(t, os.WriteFile(s.Path(), []byte("not json"), 0o600))

	_, err := s.Get(context.Background(), "channel_list")
	require.ErrorIs(t, err, ErrCorrupt)
	assert.NotErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Put(context.Background(), "channel_list", "[]"), ErrCorrupt)

	require.NoError(t, s.Clear(context.Background()))
	require.NoError(t, s.Put(context.Background(), "channel_list", "[]"))
	v, err := s.Get(context.Background(), "channel_list")
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestCachedStore_ServesFromCacheAndInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	inner := NewMemory("channels")
	s := NewCachedStore(inner, c, 0, quietLogger())

	// Cached miss.
	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, inner.Put(ctx, "k", "behind the cache"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	// Writes through the wrapper invalidate.
	require.NoError(t, s.Put(ctx, "k", "v1"))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	// Cached hit survives an out-of-band write until invalidated.
	require.NoError(t, inner.Put(ctx, "k", "v2"))
	v, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_Conformance(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, RunMigrations(dsn))

	p, err := NewPostgres(ctx, dsn, "tvplayer_test")
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Clear(ctx))

	_, err = p.Get(ctx, "channel_list")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, p.Put(ctx, "channel_list", "[]"))
	require.NoError(t, p.Put(ctx, "channel_list", "[1]"))
	v, err := p.Get(ctx, "channel_list")
	require.NoError(t, err)
	assert.Equal(t, "[1]", v)
	require.NoError(t, p.Clear(ctx))
	_, err = p.Get(ctx, "channel_list")
	require.ErrorIs(t, err, ErrNotFound)
}
