package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/orgkit/pkg/cache"
	"github.com/dmitrymomot/orgkit/pkg/logger"
)

// Conn is a lease on a tenant handle. Call Release when done with it;
// calls after the first are no-ops.
type Conn struct {
	Handle
	release func()
	once    sync.Once
}

func (c *Conn) Release() {
	c.once.Do(func() {
		if c.release != nil {
			c.release()
		}
	})
}

type entry struct {
	orgID       string
	fingerprint string
	version     time.Time // UpdatedAt of the record the handle was dialed for
	handle      Handle
	refs        int
	evicted     bool
	invalidated bool
	closed      bool
}

// CacheStats describes the dedicated connection cache.
type CacheStats struct {
	Size          int    `json:"size"`
	Capacity      int    `json:"capacity"`
	Leases        int    `json:"leases"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Evictions     uint64 `json:"evictions"`
	Invalidations uint64 `json:"invalidations"`
}

// Cache holds dedicated handles keyed by organization ID.
//
// Entries are reference counted. An entry that leaves the LRU is closed as
// soon as no lease holds it, so eviction never breaks an operation in flight.
// Handles are closed outside the lock.
type Cache struct {
	mu           sync.Mutex
	lru          *cache.LRUCache[string, *entry]
	gens         map[string]*genState
	epoch        uint64
	pending      []*entry
	stats        CacheStats
	closed       bool
	closeTimeout time.Duration
	logger       *slog.Logger
}

func newCache(capacity int, closeTimeout time.Duration, log *slog.Logger) *Cache {
	c := &Cache{
		lru:          cache.NewLRUCache[string, *entry](capacity),
		gens:         make(map[string]*genState),
		closeTimeout: closeTimeout,
		logger:       log,
	}
	c.stats.Capacity = capacity
	c.lru.SetEvictCallback(c.onEvict)
	return c
}

// Runs under c.mu via the LRU callback.
func (c *Cache) onEvict(orgID string, e *entry, reason cache.EvictReason) {
	e.evicted = true
	if reason == cache.EvictCapacity {
		c.stats.Evictions++
	} else {
		e.invalidated = true
	}
	c.logger.Debug("tenant connection evicted",
		logger.OrgID(orgID),
		logger.Fingerprint(e.fingerprint),
		slog.String("reason", reason.String()),
		slog.Int("leases", e.refs),
	)
	c.retire(e)
}

// Must be called with c.mu held.
func (c *Cache) retire(e *entry) {
	if e.refs == 0 && !e.closed {
		e.closed = true
		c.pending = append(c.pending, e)
	}
}

// Must be called with c.mu held.
func (c *Cache) takePending() []*entry {
	p := c.pending
	c.pending = nil
	return p
}

func (c *Cache) closeEntries(entries []*entry) error {
	var errs []error
	for _, e := range entries {
		ctx, cancel := context.WithTimeout(context.Background(), c.closeTimeout)
		err := e.handle.Close(ctx)
		cancel()
		if err != nil {
			c.logger.Warn("failed to close tenant connection",
				logger.OrgID(e.orgID),
				logger.Fingerprint(e.fingerprint),
				logger.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// unlock releases c.mu and closes the handles retired while it was held.
func (c *Cache) unlock() {
	pending := c.takePending()
	c.mu.Unlock()
	_ = c.closeEntries(pending)
}

// Must be called with c.mu held.
func (c *Cache) lease(e *entry) *Conn {
	e.refs++
	c.stats.Leases++
	return &Conn{Handle: e.handle, release: func() { c.release(e) }}
}

func (c *Cache) release(e *entry) {
	c.mu.Lock()
	defer c.unlock()

	e.refs--
	c.stats.Leases--
	if e.evicted {
		c.retire(e)
	}
}

// genState is the invalidation generation of one organization. It lives
// only while a resolve holds it.
type genState struct {
	gen  uint64
	pins int
}

// generation pins the invalidation generation of orgID for one resolve.
// The returned func unpins it; the state is dropped with the last pin.
//
// Generations are drawn from a process-wide epoch that every remove bumps,
// so a state created after the previous one was dropped never reuses a
// generation an older dial still carries.
func (c *Cache) generation(orgID string) (uint64, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, nil, ErrResolverClosed
	}
	st, ok := c.gens[orgID]
	if !ok {
		st = &genState{gen: c.epoch}
		c.gens[orgID] = st
	}
	st.pins++
	return st.gen, func() { c.unpin(orgID, st) }, nil
}

func (c *Cache) unpin(orgID string, st *genState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st.pins--
	if st.pins == 0 && c.gens[orgID] == st {
		delete(c.gens, orgID)
	}
}

// Must be called with c.mu held.
func (c *Cache) currentGen(orgID string) uint64 {
	if st, ok := c.gens[orgID]; ok {
		return st.gen
	}
	return c.epoch
}

// acquire leases the cached handle for orgID if it was dialed from the
// descriptor with fingerprint fp. A cached handle for another descriptor is
// dropped, unless it was dialed for a newer record than the caller holds.
func (c *Cache) acquire(orgID, fp string, version time.Time) (*Conn, bool) {
	c.mu.Lock()
	defer c.unlock()

	e, ok := c.lru.Get(orgID)
	switch {
	case !ok:
	case e.fingerprint == fp:
		c.stats.Hits++
		return c.lease(e), true
	case !e.version.After(version):
		c.lru.Remove(orgID)
	}
	c.stats.Misses++
	return nil, false
}

// lookup returns the cached entry for orgID and fp without leasing it.
func (c *Cache) lookup(orgID, fp string) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(orgID)
	if !ok || e.fingerprint != fp {
		return nil, false
	}
	return e, true
}

// retain leases an entry handed over by a dial. It fails if the entry was
// invalidated or already closed in the meantime.
func (c *Cache) retain(e *entry) (*Conn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.closed || e.invalidated {
		return nil, false
	}
	return c.lease(e), true
}

// insert caches h unless orgID was invalidated after gen was read or a
// handle dialed for a newer record is already cached.
func (c *Cache) insert(orgID, fp string, version time.Time, gen uint64, h Handle) (*entry, error) {
	c.mu.Lock()
	defer c.unlock()

	if c.closed {
		return nil, ErrResolverClosed
	}
	if c.currentGen(orgID) != gen {
		return nil, ErrInvalidated
	}
	if cur, ok := c.lru.Peek(orgID); ok && cur.version.After(version) {
		return nil, ErrInvalidated
	}

	e := &entry{orgID: orgID, fingerprint: fp, version: version, handle: h}
	if old, replaced := c.lru.Put(orgID, e); replaced {
		old.evicted = true
		old.invalidated = true
		c.retire(old)
	}
	return e, nil
}

// remove drops the entry for orgID and makes dials started before the call unable to cache.
func (c *Cache) remove(orgID string) bool {
	c.mu.Lock()
	defer c.unlock()

	c.epoch++
	if st, ok := c.gens[orgID]; ok {
		st.gen = c.epoch
	}
	if _, ok := c.lru.Remove(orgID); ok {
		c.stats.Invalidations++
		return true
	}
	return false
}

// close drops every entry. Leased handles are closed on their last release.
func (c *Cache) close() error {
	c.mu.Lock()
	c.closed = true
	c.lru.Clear()
	pending := c.takePending()
	c.mu.Unlock()

	return c.closeEntries(pending)
}

func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.lru.Len()
	return s
}
