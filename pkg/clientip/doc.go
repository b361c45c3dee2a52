// Package clientip resolves the originating client address of a request
// served behind reverse proxies.
//
// A Resolver checks the configured headers in order and returns the first
// valid address, taking the first valid entry of comma separated lists such
// as X-Forwarded-For. When no header yields an address it falls back to the
// TCP peer in RemoteAddr. Only list headers your proxy overwrites; anything
// else can be forged by the client.
//
// Middleware stores the resolved address in the request context, where
// FromContext finds it. Rate limiting keys requests by this value.
//
//	res := clientip.New("CF-Connecting-IP", "X-Forwarded-For")
//	r.Use(clientip.Middleware(res))
package clientip
