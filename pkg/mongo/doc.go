// Package mongo provides MongoDB client construction for the control database
// and for tenant-supplied dedicated databases.
//
// New is meant for the process-wide control connection: it retries and pings
// before returning. Open is meant for tenant URIs: one attempt with a bounded
// timeout and no retries, so one unreachable tenant cannot hold up a request.
// The Is* helpers classify driver errors (duplicate keys, missing namespaces)
// so callers can map them to their own error types.
//
// # Usage
//
//	client, err := mongo.New(ctx, mongo.Config{ConnectionURL: "mongodb://localhost:27017"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Disconnect(context.Background())
//
//	health := mongo.Healthcheck(client)
//
//	tenant, err := mongo.Open("mongodb://tenant-host:27017", 5*time.Second, 10)
//
// # See Also
//
// Documentation for the official driver: https://pkg.go.dev/go.mongodb.org/mongo-driver/v2.
package mongo
