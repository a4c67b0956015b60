package processor

import (
	"container/list"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"
	"sync"

	"github.com/nci/gomemcache/memcache"
	"github.com/nci/voxrgb/utils"
)

// WindowCache remembers resolved windows so that repeated conversions of
// the same volume skip the full scan or sort.
type WindowCache interface {
	Get(key string) (utils.Window, bool)
	Put(key string, w utils.Window)
}

// WindowCacheKey hashes the voxel values together with the policy.
func WindowCacheKey(v utils.Volume, p utils.WindowPolicy) string {
	h := md5.New()
	var buf [8]byte
	for i := 0; i < v.Len(); i++ {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.At(i)))
		h.Write(buf[:])
	}
	h.Write([]byte(p.String()))
	return "win_" + hex.EncodeToString(h.Sum(nil))
}

// MemcacheWindowCache stores windows in memcached. Errors are ignored: a
// miss only costs a recomputation.
type MemcacheWindowCache struct {
	mc *memcache.Client
}

// NewMemcacheWindowCache connects lazily to uri (host:port).
func NewMemcacheWindowCache(uri string) *MemcacheWindowCache {
	return &MemcacheWindowCache{mc: memcache.New(uri)}
}

func (c *MemcacheWindowCache) Get(key string) (utils.Window, bool) {
	item, err := c.mc.Get(key)
	if err != nil {
		return utils.Window{}, false
	}
	var w utils.Window
	if err := json.Unmarshal(item.Value, &w); err != nil {
		return utils.Window{}, false
	}
	return w, true
}

func (c *MemcacheWindowCache) Put(key string, w utils.Window) {
	value, err := json.Marshal(w)
	if err != nil {
		return
	}
	c.mc.Set(&memcache.Item{Key: key, Value: value})
}

// DefaultMemWindowCacheSize bounds NewMemWindowCache when no size is given.
const DefaultMemWindowCacheSize = 1024

// MemWindowCache is an in-process WindowCache holding at most maxEntries
// windows. The least recently used window is evicted first.
type MemWindowCache struct {
	mu         sync.Mutex
	maxEntries int
	order      *list.List
	windows    map[string]*list.Element
}

type memWindowEntry struct {
	key    string
	window utils.Window
}

func NewMemWindowCache(maxEntries int) *MemWindowCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMemWindowCacheSize
	}
	return &MemWindowCache{
		maxEntries: maxEntries,
		order:      list.New(),
		windows:    make(map[string]*list.Element),
	}
}

func (c *MemWindowCache) Get(key string) (utils.Window, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, found := c.windows[key]
	if !found {
		return utils.Window{}, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*memWindowEntry).window, true
}

func (c *MemWindowCache) Put(key string, w utils.Window) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, found := c.windows[key]; found {
		elem.Value.(*memWindowEntry).window = w
		c.order.MoveToFront(elem)
		return
	}
	c.windows[key] = c.order.PushFront(&memWindowEntry{key: key, window: w})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.windows, oldest.Value.(*memWindowEntry).key)
	}
}

// Len is the number of cached windows.
func (c *MemWindowCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// resolveWindow consults cache for the scanning policies. Range windows
// need no scan and bypass the cache.
func resolveWindow(p utils.WindowPolicy, v utils.Volume, cache WindowCache) (utils.Window, error) {
	if cache == nil || p.Kind == utils.WindowRange || v == nil {
		return utils.ResolveWindow(p, v)
	}

	key := WindowCacheKey(v, p)
	if w, found := cache.Get(key); found {
		return w, nil
	}
	w, err := utils.ResolveWindow(p, v)
	if err != nil {
		return w, err
	}
	cache.Put(key, w)
	return w, nil
}
