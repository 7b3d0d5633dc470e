package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rbcheck/internal/global"
	"rbcheck/internal/metrics"
)

// DiskCache хранит снапшоты по ключу содержимого на диске.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// OpenDiskCache opens a cache rooted at dir, or at the standard location
// ($XDG_CACHE_HOME/app, else ~/.cache/app) when dir is empty.
func OpenDiskCache(dir, app string) (*DiskCache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, app)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir is the cache root.
func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) pathFor(key Key) string {
	// Снапшоты лежат в подкаталоге "snapshots".
	return filepath.Join(c.dir, "snapshots", key.String()+".mp")
}

// Put writes gs under key. A nil cache drops the write.
func (c *DiskCache) Put(key Key, gs *global.GlobalState) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		// после успешного Rename временного файла уже нет
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	if err := Encode(f, gs, NewMeta(key)); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), p)
}

// Get loads the state filed under key. A miss is (nil, Meta{}, false, nil);
// an unreadable entry counts as an error, not a miss.
func (c *DiskCache) Get(key Key) (*global.GlobalState, Meta, bool, error) {
	if c == nil {
		return nil, Meta{}, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			metrics.SnapshotCache.WithLabelValues("miss").Inc()
			return nil, Meta{}, false, nil
		}
		metrics.SnapshotCache.WithLabelValues("error").Inc()
		return nil, Meta{}, false, err
	}
	defer f.Close()

	gs, meta, err := Decode(f)
	if err != nil {
		metrics.SnapshotCache.WithLabelValues("error").Inc()
		return nil, meta, false, fmt.Errorf("snapshot %s: %w", key, err)
	}
	if meta.Key != key {
		metrics.SnapshotCache.WithLabelValues("error").Inc()
		return nil, meta, false, fmt.Errorf("snapshot %s: filed under %s", key, meta.Key)
	}
	metrics.SnapshotCache.WithLabelValues("hit").Inc()
	return gs, meta, true, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// тривиально: переименуем каталог и удалим
	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}

// Ensure returns the cached state for inputs, building and storing it
// with build on a miss. The returned bool reports a cache hit.
func (c *DiskCache) Ensure(inputs []Input, build func() (*global.GlobalState, error)) (*global.GlobalState, bool, error) {
	key := Digest(inputs)
	if gs, _, ok, err := c.Get(key); err == nil && ok {
		return gs, true, nil
	}
	gs, err := build()
	if err != nil {
		return nil, false, err
	}
	if err := c.Put(key, gs); err != nil {
		return gs, false, fmt.Errorf("store snapshot %s: %w", key, err)
	}
	return gs, false, nil
}
