// Package cache provides memoization for graph compilation.
// Compilation is a pure function over the graph value, so identical
// graphs always produce identical results and memoization is sound.
// Editors that recompile on every canvas change benefit the most.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"sort"
	"sync"

	"github.com/cashblocks/go-cashblocks/blocks"
	"github.com/cashblocks/go-cashblocks/codegen/cashscript"
)

// CompileCache caches compile results keyed by graph fingerprint.
type CompileCache struct {
	mu        sync.RWMutex
	cache     map[string]*cashscript.CompileResult
	maxSize   int
	hits      int64
	misses    int64
	evictions int64
}

// NewCompileCache creates a cache with the specified maximum size.
// When the cache is full, an arbitrary entry is evicted. Set maxSize
// to 0 for an unlimited cache.
func NewCompileCache(maxSize int) *CompileCache {
	return &CompileCache{
		cache:   make(map[string]*cashscript.CompileResult),
		maxSize: maxSize,
	}
}

// Fingerprint creates a deterministic hash of a block graph. Node
// identifiers are visited in sorted order so the fingerprint does not
// depend on map iteration.
func Fingerprint(g *blocks.BlockGraph) string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha256.New()
	writeString(h, g.Name)
	writeString(h, g.RootID)
	for _, id := range ids {
		n := g.Nodes[id]
		writeString(h, n.ID)
		writeString(h, string(n.Type))
		writeParams(h, &n.Params)
		writeList(h, n.Next)
		writeList(h, n.WhenTrue)
		writeList(h, n.WhenFalse)
	}
	return string(h.Sum(nil))
}

func writeString(h hash.Hash, s string) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(s)))
	h.Write(buf[:])
	h.Write([]byte(s))
}

func writeList(h hash.Hash, list []string) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(list)))
	h.Write(buf[:])
	for _, s := range list {
		writeString(h, s)
	}
}

func writeOptInt(h hash.Hash, v *int64) {
	var buf [9]byte
	if v != nil {
		buf[0] = 1
		binary.BigEndian.PutUint64(buf[1:], uint64(*v))
	}
	h.Write(buf[:])
}

func writeParams(h hash.Hash, p *blocks.Params) {
	writeOptInt(h, p.Amount)
	writeOptInt(h, p.Days)
	writeOptInt(h, p.UnlockTime)
	writeOptInt(h, p.Percent)
	writeOptInt(h, p.PriceTarget)
	writeString(h, p.Recipient)
	writeString(h, p.TokenCat)
	writeString(h, p.OracleCat)
	writeString(h, p.Hash)
	writeString(h, p.Operator)
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], uint32(p.Required))
	binary.BigEndian.PutUint32(buf[4:], uint32(p.Total))
	h.Write(buf[:])
	writeString(h, p.CondRoot)
	writeString(h, p.Left)
	writeString(h, p.Right)
}

// Get retrieves a cached result for the given graph, or nil.
func (c *CompileCache) Get(g *blocks.BlockGraph) *cashscript.CompileResult {
	key := Fingerprint(g)

	c.mu.Lock()
	defer c.mu.Unlock()

	if res, ok := c.cache[key]; ok {
		c.hits++
		return res
	}
	c.misses++
	return nil
}

// Put stores a compile result for the given graph.
func (c *CompileCache) Put(g *blocks.BlockGraph, res *cashscript.CompileResult) {
	key := Fingerprint(g)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize > 0 && len(c.cache) >= c.maxSize {
		for k := range c.cache {
			delete(c.cache, k)
			c.evictions++
			break
		}
	}
	c.cache[key] = res
}

// Compile returns the cached result for the graph, compiling and
// caching it on a miss.
func (c *CompileCache) Compile(g *blocks.BlockGraph) *cashscript.CompileResult {
	if res := c.Get(g); res != nil {
		return res
	}
	res := cashscript.Compile(g)
	c.Put(g, res)
	return res
}

// Clear removes all entries from the cache.
func (c *CompileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*cashscript.CompileResult)
}

// Size returns the current number of cached entries.
func (c *CompileCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Stats holds cache statistics.
type Stats struct {
	Size      int
	MaxSize   int
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
}

// Stats returns cache statistics.
func (c *CompileCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Size:      len(c.cache),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRate:   hitRate,
	}
}
