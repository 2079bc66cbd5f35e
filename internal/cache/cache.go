package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/spf13/afero"

	"github.com/ppiankov/poseprep/internal/model"
)

// Cache stores converted annotation documents as encoded bytes
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey derives a cache key from a document fingerprint
func CacheKey(fingerprint string) string {
	hash := sha256.Sum256([]byte(fingerprint))
	return "poseprep:v1:" + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg: memory in front of disk, or a
// no-op cache when caching is disabled
func New(cfg model.CacheConfig, fs afero.Fs) Cache {
	if !cfg.Enabled {
		return NopCache{}
	}
	return NewLayeredCache(
		NewMemoryCache(cfg.MemoryTTL, 10*time.Minute),
		NewDiskCache(fs, cfg.Dir, cfg.DiskTTL),
	)
}

// NopCache never stores anything
type NopCache struct{}

func (NopCache) Get(string) ([]byte, bool)               { return nil, false }
func (NopCache) Set(string, []byte, time.Duration) error { return nil }
func (NopCache) Delete(string) error                     { return nil }
func (NopCache) Clear() error                            { return nil }
