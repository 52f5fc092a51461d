package drafts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/socialpost/postctl/internal/apierrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBackends(t *testing.T) map[string]Backend {
	sqliteBackend, err := NewSQLiteBackend(context.Background(), filepath.Join(t.TempDir(), "drafts.db"))
	require.NoError(t, err)
	redisBackend, err := NewRedisBackend(WithRedisClient(NewMockRedisClient()))
	require.NoError(t, err)
	backends := map[string]Backend{"sqlite": sqliteBackend, "redis": redisBackend}
	t.Cleanup(func() {
		for _, backend := range backends {
			backend.Close()
		}
	})
	return backends
}

func TestBackendRoundTrip(t *testing.T) {
	updatedAt := time.Date(2026, 5, 4, 10, 30, 0, 125_000_000, time.UTC)
	for name, backend := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			record := Record{Namespace: "user_7", Key: "content", Value: `"hello"`, UpdatedAt: updatedAt}
			require.NoError(t, backend.Set(ctx, record))
			got, err := backend.Get(ctx, "user_7", "content")
			require.NoError(t, err)
			if diff := cmp.Diff(record, got); diff != "" {
				t.Errorf("record mismatch (-want +got):\n%s", diff)
			}

			record.Value = `"bye"`
			require.NoError(t, backend.Set(ctx, record))
			got, err = backend.Get(ctx, "user_7", "content")
			require.NoError(t, err)
			assert.Equal(t, `"bye"`, got.Value)

			require.NoError(t, backend.Delete(ctx, "user_7", "content"))
			_, err = backend.Get(ctx, "user_7", "content")
			assert.ErrorIs(t, err, apierrors.ErrDraftNotFound)
		})
	}
}

func TestBackendListAndClear(t *testing.T) {
	updatedAt := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	for name, backend := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, r := range []Record{
				{Namespace: "user_7", Key: "b", Value: "2", UpdatedAt: updatedAt},
				{Namespace: "user_7", Key: "a", Value: "1", UpdatedAt: updatedAt},
				{Namespace: "user_8", Key: "a", Value: "other", UpdatedAt: updatedAt},
			} {
				require.NoError(t, backend.Set(ctx, r))
			}
			records, err := backend.List(ctx, "user_7")
			require.NoError(t, err)
			want := []Record{
				{Namespace: "user_7", Key: "a", Value: "1", UpdatedAt: updatedAt},
				{Namespace: "user_7", Key: "b", Value: "2", UpdatedAt: updatedAt},
			}
			if diff := cmp.Diff(want, records); diff != "" {
				t.Errorf("list mismatch (-want +got):\n%s", diff)
			}

			require.NoError(t, backend.Clear(ctx, "user_7"))
			records, err = backend.List(ctx, "user_7")
			require.NoError(t, err)
			assert.Empty(t, records)
			other, err := backend.Get(ctx, "user_8", "a")
			require.NoError(t, err)
			assert.Equal(t, "other", other.Value)
		})
	}
}

func TestRedisBackendNeedsClient(t *testing.T) {
	_, err := NewRedisBackend()
	assert.Error(t, err)
}
