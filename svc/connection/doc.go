// Package connection resolves organizations to live tenant database handles.
//
// Shared organizations all use the one process-wide handle supplied at startup.
// Dedicated organizations get their own handle, dialed from the tenant's
// connection descriptor and cached by organization ID:
//
//	resolver := connection.NewResolver(sharedHandle,
//		connection.WithDialer(connection.NewSchemeDialer(5*time.Second, 10)),
//		connection.WithCacheSize(100),
//	)
//
//	conn, err := resolver.Resolve(ctx, org)
//	if err != nil {
//		return err
//	}
//	defer conn.Release()
//
// Concurrent misses for the same organization share a single dial. A handle
// that leaves the cache, through eviction or Invalidate, stays usable by
// callers already holding a lease and is closed when the last one releases it.
// Failed dials are never cached.
//
// Handles are backed by MongoDB (mongodb://, mongodb+srv://) or PostgreSQL
// (postgres://, postgresql://). Each tenant's data lives in a partition named
// organization.PartitionName(key): a collection in MongoDB, a schema in PostgreSQL.
package connection
