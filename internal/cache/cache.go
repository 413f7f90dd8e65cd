// Package cache stores finished DICOM to raster conversions so a repeated
// upload can be answered without decoding again.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss is returned when a key is not found in cache
var ErrCacheMiss = errors.New("cache miss")

// ErrCorruptEntry is returned by GetEntry when the stored bytes cannot be
// decoded. The key should be dropped.
var ErrCorruptEntry = errors.New("corrupt cache entry")

// KeyPrefix namespaces every key written by dicompixel.
const KeyPrefix = "dicompixel:"

// Cache defines the cache interface
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// CacheKey builds the key of a conversion result from its mode and the
// digest of the uploaded files.
func CacheKey(mode, digest string) string {
	return KeyPrefix + mode + ":" + digest
}

// Entry is a cached conversion result: the deliverable file and how it was
// produced.
type Entry struct {
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
	Files    int    `json:"files"`
	Data     []byte `json:"data"`
}

// GetEntry loads and decodes the entry stored under key.
func GetEntry(ctx context.Context, c Cache, key string) (*Entry, error) {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return &e, nil
}

// SetEntry encodes e and stores it under key.
func SetEntry(ctx context.Context, c Cache, key string, e *Entry, ttl time.Duration) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return c.Set(ctx, key, raw, ttl)
}
