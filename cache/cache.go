//
// Tencent is pleased to support the open source community by making prompteval-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// prompteval-go is licensed under the Apache License Version 2.0.
//
//

// Package cache provides a two-tier (memory and disk) content-addressed cache
// for model responses. Caching is best-effort: disk failures never propagate
// to the calling evaluation.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"trpc.group/trpc-go/prompteval-go/log"
)

const (
	defaultDir = "data/cache/evaluation"
	defaultTTL = 24 * time.Hour
)

// Option configures a Cache.
type Option func(*options)

type options struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// WithDir sets the on-disk cache directory.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithTTL sets the entry time-to-live. Zero means entries expire as soon as
// any time has elapsed since they were stored.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// entry is the stored cache record. Timestamp is Unix nanoseconds.
type entry struct {
	Prompt      string         `json:"prompt"`
	Model       string         `json:"model"`
	Provider    string         `json:"provider"`
	Temperature float64        `json:"temperature"`
	Response    string         `json:"response"`
	Timestamp   int64          `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits          int     `json:"hits"`
	Misses        int     `json:"misses"`
	Saves         int     `json:"saves"`
	HitRate       float64 `json:"hit_rate"`
	MemoryEntries int     `json:"memory_entries"`
	DiskEntries   int     `json:"disk_entries"`
}

// SizeInfo reports the disk footprint of the cache.
type SizeInfo struct {
	TotalBytes   int64 `json:"total_bytes"`
	FileCount    int   `json:"file_count"`
	AvgFileBytes int64 `json:"avg_file_size_bytes"`
}

// Cache is a two-tier response cache. The in-memory map is checked first; on
// miss the sharded disk store is consulted and a hit is promoted into memory.
// Cache is safe for concurrent use.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	memory map[string]entry
	hits   int
	misses int
	saves  int
}

// New creates a cache rooted at the configured directory, creating it if
// needed.
func New(opt ...Option) (*Cache, error) {
	opts := options{dir: defaultDir, ttl: defaultTTL, now: time.Now}
	for _, o := range opt {
		o(&opts)
	}
	if err := os.MkdirAll(opts.dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{
		dir:    opts.dir,
		ttl:    opts.ttl,
		now:    opts.now,
		memory: make(map[string]entry),
	}, nil
}

// cacheKey derives the content address for a request: a SHA-256 over the
// stable JSON serialization of every identifying parameter. Any differing
// extra parameter yields a distinct key; over-specificity is preferred to
// silent collisions.
func cacheKey(prompt, model, provider string, temperature float64, extra map[string]any) string {
	params := map[string]any{
		"prompt":      prompt,
		"model":       model,
		"provider":    provider,
		"temperature": temperature,
	}
	for k, v := range extra {
		params[k] = v
	}
	// encoding/json writes map keys in sorted order, so this is deterministic.
	b, err := json.Marshal(params)
	if err != nil {
		b = []byte(prompt + model + provider)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// entryPath shards files into subdirectories by the first two hex characters
// of the key to bound per-directory file counts.
func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key[:2], key+".json")
}

func (c *Cache) expired(e entry) bool {
	return c.now().Sub(time.Unix(0, e.Timestamp)) > c.ttl
}

// Get returns the cached response for the request parameters, or false when
// absent or expired. Expired entries found during lookup are removed lazily.
func (c *Cache) Get(prompt, model, provider string, temperature float64, extra map[string]any) (string, bool) {
	key := cacheKey(prompt, model, provider, temperature, extra)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.memory[key]; ok {
		if !c.expired(e) {
			c.hits++
			return e.Response, true
		}
		delete(c.memory, key)
	}

	path := c.entryPath(key)
	if b, err := os.ReadFile(path); err == nil {
		var e entry
		if err := json.Unmarshal(b, &e); err == nil {
			if !c.expired(e) {
				c.memory[key] = e
				c.hits++
				return e.Response, true
			}
			if err := os.Remove(path); err != nil {
				log.Debugf("cache: remove expired entry %s: %v", path, err)
			}
		}
	}

	c.misses++
	return "", false
}

// Set stores a response under the request parameters. The memory tier always
// succeeds; the disk write is atomic (temp file then rename) and failures are
// swallowed after a debug log.
func (c *Cache) Set(prompt, model, provider string, temperature float64, response string, extra map[string]any) {
	key := cacheKey(prompt, model, provider, temperature, extra)
	e := entry{
		Prompt:      prompt,
		Model:       model,
		Provider:    provider,
		Temperature: temperature,
		Response:    response,
		Timestamp:   c.now().UnixNano(),
		Metadata:    extra,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.memory[key] = e

	path := c.entryPath(key)
	if err := writeEntry(path, e); err != nil {
		log.Debugf("cache: disk write failed for %s: %v", path, err)
		return
	}
	c.saves++
}

func writeEntry(path string, e entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Clear removes every entry from both tiers and returns the number removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := len(c.memory)
	c.memory = make(map[string]entry)

	c.walkEntries(func(path string, _ entry) {
		if err := os.Remove(path); err != nil {
			log.Debugf("cache: remove %s: %v", path, err)
			return
		}
		count++
	})
	return count
}

// ClearExpired removes expired entries from both tiers and returns the number
// removed.
func (c *Cache) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.memory {
		if c.expired(e) {
			delete(c.memory, key)
			count++
		}
	}

	c.walkEntries(func(path string, e entry) {
		if !c.expired(e) {
			return
		}
		if err := os.Remove(path); err != nil {
			log.Debugf("cache: remove expired %s: %v", path, err)
			return
		}
		count++
	})
	return count
}

// Stats returns hit/miss counters and tier entry counts.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Saves:         c.saves,
		MemoryEntries: len(c.memory),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	c.walkEntries(func(string, entry) {
		s.DiskEntries++
	})
	return s
}

// Size reports the cache's disk footprint.
func (c *Cache) Size() SizeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	var info SizeInfo
	_ = filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			info.TotalBytes += fi.Size()
			info.FileCount++
		}
		return nil
	})
	if info.FileCount > 0 {
		info.AvgFileBytes = info.TotalBytes / int64(info.FileCount)
	}
	return info
}

// walkEntries calls fn for every readable cache file on disk. Unreadable
// files are skipped.
func (c *Cache) walkEntries(fn func(path string, e entry)) {
	_ = filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var e entry
		if err := json.Unmarshal(b, &e); err != nil {
			return nil
		}
		fn(path, e)
		return nil
	})
}
