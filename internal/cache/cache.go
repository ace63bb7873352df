// Package cache remembers which files are already formatted. An entry
// holds the hash of a file's content together with the configuration and
// build that produced it; any of the three changing invalidates the entry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
)

const indexVersion = 1

type entry struct {
	ContentHash string `json:"content_hash"`
	ConfigHash  string `json:"config_hash"`
	Build       string `json:"build"`
}

type index struct {
	Version int              `json:"version"`
	Entries map[string]entry `json:"entries"`
}

// Cache is a per-directory index of formatted files. It is safe for
// concurrent use.
type Cache struct {
	dir        string
	configHash string
	build      string
	mu         sync.Mutex
	index      index
	dirty      bool
}

// New creates a cache rooted at dir for one configuration. cfg is hashed
// through its JSON form.
func New(dir string, cfg any) (*Cache, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash config: %w", err)
	}
	return &Cache{
		dir:        dir,
		configHash: Hash(string(data)),
		build:      buildID(),
		index:      index{Version: indexVersion, Entries: make(map[string]entry)},
	}, nil
}

// Hash returns the hex SHA-256 of text
func Hash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// buildID identifies the running binary so a rebuilt formatter never
// trusts entries written by another build
func buildID() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	id := info.Main.Version
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" || s.Key == "vcs.modified" {
			id += "+" + s.Value
		}
	}
	return id
}

func (c *Cache) indexPath() string {
	return filepath.Join(c.dir, "index.json")
}

// Load reads the index. A missing index or one of another version starts
// empty.
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache index: %w", err)
	}
	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("parse cache index: %w", err)
	}
	if idx.Version != indexVersion {
		// Reset on version mismatch
		c.index = index{Version: indexVersion, Entries: make(map[string]entry)}
		return nil
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]entry)
	}
	c.index = idx
	return nil
}

// Save writes the index if it changed since Load
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := writeJSONAtomic(c.indexPath(), c.index); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// Formatted reports whether text is known to be the formatted form of the
// file at path
func (c *Cache) Formatted(path, text string) bool {
	c.mu.Lock()
	e, ok := c.index.Entries[path]
	c.mu.Unlock()
	return ok && e.ContentHash == Hash(text) && e.ConfigHash == c.configHash && e.Build == c.build
}

// Put records text as the formatted form of the file at path
func (c *Cache) Put(path, text string) {
	e := entry{ContentHash: Hash(text), ConfigHash: c.configHash, Build: c.build}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index.Entries[path] != e {
		c.index.Entries[path] = e
		c.dirty = true
	}
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
