package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/vulnprobe/pkg/output/writers"
)

const testID = "3f2b8c1e-0d4a-4b7e-9a61-2f7d8e5c9b10"

// setupRedis creates a miniredis instance and a connected store.
func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedis(RedisOptions{URL: fmt.Sprintf("redis://%s", mr.Addr())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFS(t.TempDir())
	require.NoError(t, err)
	rs, _ := setupRedis(t)
	return map[string]Store{"fs": fsStore, "redis": rs}
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, testID, writers.FormatJSON, []byte(`{"a":1}`)))
			require.NoError(t, s.Save(ctx, testID, writers.FormatPDF, []byte("%PDF-1.3")))

			got, err := s.Load(ctx, testID, writers.FormatJSON)
			require.NoError(t, err)
			assert.Equal(t, `{"a":1}`, string(got))

			got, err = s.Load(ctx, testID, writers.FormatPDF)
			require.NoError(t, err)
			assert.Equal(t, "%PDF-1.3", string(got))

			require.NoError(t, s.Save(ctx, testID, writers.FormatJSON, []byte(`{"a":2}`)))
			got, err = s.Load(ctx, testID, writers.FormatJSON)
			require.NoError(t, err)
			assert.Equal(t, `{"a":2}`, string(got), "save replaces")
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(ctx, "missing", writers.FormatPDF)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_RejectsUnsafeIDs(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"", "../etc/passwd", "a/b", "a.b", "id with space"} {
				assert.ErrorIs(t, s.Save(ctx, id, writers.FormatJSON, nil), ErrInvalidID, id)
				_, err := s.Load(ctx, id, writers.FormatJSON)
				assert.ErrorIs(t, err, ErrInvalidID, id)
			}
			assert.ErrorIs(t, s.Save(ctx, testID, writers.Format("exe"), nil), writers.ErrUnknownFormat)
		})
	}
}

func TestFS_Layout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	s, err := NewFS(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), testID, writers.FormatMarkdown, []byte("# r")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are cleaned up")
	assert.Equal(t, testID+".md", entries[0].Name())
}

func TestRedis_KeyAndTTL(t *testing.T) {
	s, mr := setupRedis(t)
	require.NoError(t, s.Save(context.Background(), testID, writers.FormatPDF, []byte("x")))

	key := "vulnprobe:report:" + testID + ":pdf"
	assert.Equal(t, key, s.Key(testID, writers.FormatPDF))
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 7*24*time.Hour, mr.TTL(key))

	mr.FastForward(8 * 24 * time.Hour)
	_, err := s.Load(context.Background(), testID, writers.FormatPDF)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_NoExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedis(RedisOptions{URL: "redis://" + mr.Addr(), TTL: -1, Prefix: "test:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(context.Background(), testID, writers.FormatJSON, []byte("{}")))
	assert.Equal(t, time.Duration(0), mr.TTL("test:"+testID+":json"))
}

func TestNewRedis_Errors(t *testing.T) {
	_, err := NewRedis(RedisOptions{URL: "not-a-url://"})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedis(RedisOptions{URL: "redis://" + addr, ConnectTimeout: 200 * time.Millisecond})
	assert.Error(t, err)
}
