package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/poseprep/internal/model"
)

func TestCacheKey(t *testing.T) {
	a := CacheKey("fingerprint-a")
	b := CacheKey("fingerprint-b")

	assert.True(t, strings.HasPrefix(a, "poseprep:v1:"))
	assert.Equal(t, a, CacheKey("fingerprint-a"))
	assert.NotEqual(t, a, b)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Set("a", []byte("1"), 0))
	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	require.NoError(t, c.Set("short", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
}

func TestDiskCache(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := NewDiskCache(fs, "cache", time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	t.Run("Should round-trip a value", func(t *testing.T) {
		key := CacheKey("doc")
		require.NoError(t, c.Set(key, []byte(`{"img":[]}`), 0))

		got, ok := c.Get(key)
		require.True(t, ok)
		assert.Equal(t, []byte(`{"img":[]}`), got)

		files, err := afero.ReadDir(fs, "cache")
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.NotContains(t, files[0].Name(), ":")
	})

	t.Run("Should expire and remove stale entries", func(t *testing.T) {
		require.NoError(t, c.Set("old", []byte("v"), time.Minute))
		now = now.Add(2 * time.Minute)

		_, ok := c.Get("old")
		assert.False(t, ok)
		exists, _ := afero.Exists(fs, c.path("old"))
		assert.False(t, exists)
	})

	t.Run("Should ignore corrupt entries", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, c.path("bad"), []byte("not json"), 0644))
		_, ok := c.Get("bad")
		assert.False(t, ok)
	})

	t.Run("Should delete missing keys without error", func(t *testing.T) {
		assert.NoError(t, c.Delete("never-set"))
	})

	t.Run("Should clear the directory", func(t *testing.T) {
		require.NoError(t, c.Set("x", []byte("v"), 0))
		require.NoError(t, c.Clear())
		exists, _ := afero.DirExists(fs, "cache")
		assert.False(t, exists)
	})
}

func TestLayeredCache(t *testing.T) {
	fs := afero.NewMemMapFs()
	front := NewMemoryCache(time.Minute, time.Minute)
	back := NewDiskCache(fs, "cache", time.Hour)
	c := NewLayeredCache(front, back)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	_, inFront := front.Get("k")
	_, inBack := back.Get("k")
	assert.True(t, inFront)
	assert.True(t, inBack)

	// a disk-only hit is promoted
	require.NoError(t, front.Clear())
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
	_, inFront = front.Get("k")
	assert.True(t, inFront)

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	fs := afero.NewMemMapFs()

	disabled := New(model.CacheConfig{Enabled: false}, fs)
	require.NoError(t, disabled.Set("k", []byte("v"), 0))
	_, ok := disabled.Get("k")
	assert.False(t, ok)

	enabled := New(model.CacheConfig{Enabled: true, Dir: "c", MemoryTTL: time.Minute, DiskTTL: time.Hour}, fs)
	require.NoError(t, enabled.Set("k", []byte("v"), 0))
	got, ok := enabled.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}
