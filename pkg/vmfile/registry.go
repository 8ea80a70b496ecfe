package vmfile

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
)

// How long to keep an idle backing file open since the last access.
// Should be longer than the typical lifetime of an address space using
// the file.
const fileExpiration = time.Hour

// OpenFunc opens the backing file at the given path.
type OpenFunc func(path string) (File, error)

// Registry deduplicates backing file handles by path. Splitting and
// remapping produce many regions over the same file; the registry keeps
// one open handle per path and closes it after expiration.
type Registry struct {
	cache *ttlcache.Cache[string, File]
	open  OpenFunc
}

func NewRegistry(open OpenFunc) *Registry {
	if open == nil {
		open = func(path string) (File, error) {
			return NewLocal(path)
		}
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, File](fileExpiration),
	)

	cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, File]) {
		closer, ok := item.Value().(io.Closer)
		if !ok {
			return
		}

		err := closer.Close()
		if err != nil {
			zap.L().Error("failed to close evicted backing file",
				zap.String("path", item.Key()),
				zap.Error(err),
			)
		}
	})

	go cache.Start()

	return &Registry{
		cache: cache,
		open:  open,
	}
}

// GetFile returns the open handle for path, opening it on first use.
// The handle is shared between callers; the registry owns closing it.
func (r *Registry) GetFile(path string) (File, error) {
	if item := r.cache.Get(path); item != nil {
		return item.Value(), nil
	}

	f, err := r.open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backing file: %w", err)
	}

	item, found := r.cache.GetOrSet(path, f)
	if found {
		// Lost the race, another caller opened the file first.
		if closer, ok := f.(io.Closer); ok {
			_ = closer.Close()
		}
	}

	return item.Value(), nil
}

// Len returns the number of open handles.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close stops the expiration loop and closes every cached handle.
func (r *Registry) Close() {
	r.cache.Stop()
	r.cache.DeleteAll()
}
