// Package redis connects to a Redis server with retries and exposes a health
// check. In orgkit it backs the shared rate-limit store when several API
// instances run behind a load balancer.
//
//	client, err := redis.Connect(ctx, redis.Config{ConnectionURL: "redis://localhost:6379/0"})
//	if err != nil {
//		return err
//	}
//	store := ratelimit.NewRedisStore(client)
package redis
