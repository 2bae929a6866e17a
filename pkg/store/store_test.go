package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registries(t *testing.T) map[string]func(t *testing.T) Registry {
	return map[string]func(t *testing.T) Registry{
		"memory": func(t *testing.T) Registry { return NewMemory() },
		"sqlite": func(t *testing.T) Registry {
			s, err := NewSQLite(filepath.Join(t.TempDir(), "db", "registry.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestRegistry_Basic(t *testing.T) {
	ctx := context.Background()
	for name, open := range registries(t) {
		t.Run(name, func(t *testing.T) {
			r := open(t)

			_, ok, err := r.Get(ctx, KeyPublishETag)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, r.Set(ctx, KeyPublishETag, "etag-1"))
			require.NoError(t, r.Set(ctx, KeyPublishETag, "etag-2"))
			v, ok, err := r.Get(ctx, KeyPublishETag)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "etag-2", v)

			require.NoError(t, r.Delete(ctx, KeyPublishETag))
			_, ok, err = r.Get(ctx, KeyPublishETag)
			require.NoError(t, err)
			assert.False(t, ok)

			// удаление отсутствующего ключа не ошибка
			require.NoError(t, r.Delete(ctx, "missing"))
		})
	}
}

func TestRegistry_Helpers(t *testing.T) {
	ctx := context.Background()
	for name, open := range registries(t) {
		t.Run(name, func(t *testing.T) {
			r := open(t)

			n, err := GetInt(ctx, r, KeySubscribeMinExpire)
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			require.NoError(t, SetInt(ctx, r, KeySubscribeMinExpire, 2000))
			n, err = GetInt(ctx, r, KeySubscribeMinExpire)
			require.NoError(t, err)
			assert.Equal(t, 2000, n)

			require.NoError(t, r.Set(ctx, KeyWinfoMinExpire, "abc"))
			_, err = GetInt(ctx, r, KeyWinfoMinExpire)
			assert.Error(t, err)

			tm, err := GetTime(ctx, r, KeyPublishETagExpiry)
			require.NoError(t, err)
			assert.True(t, tm.IsZero())

			exp := time.Unix(1_900_000_000, 0)
			require.NoError(t, SetTime(ctx, r, KeyPublishETagExpiry, exp))
			tm, err = GetTime(ctx, r, KeyPublishETagExpiry)
			require.NoError(t, err)
			assert.True(t, exp.Equal(tm))
		})
	}
}

func TestSQLite_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.db")

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, SetInt(ctx, s, KeyPublishMinExpire, 120))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.Ping(ctx))
	n, err := GetInt(ctx, reopened, KeyPublishMinExpire)
	require.NoError(t, err)
	assert.Equal(t, 120, n)
}
