// Package cache provides a generic, thread-safe LRU cache with an eviction hook.
//
// The hook fires whenever an entry leaves the cache, whether it was pushed out
// by capacity, removed explicitly or dropped by Clear. The reason is passed to
// the hook so owners of closable values can release them and log why.
//
//	c := cache.NewLRUCache[string, *Conn](100)
//	c.SetEvictCallback(func(key string, conn *Conn, reason cache.EvictReason) {
//		conn.Close()
//	})
package cache
