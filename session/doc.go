// Package session holds the client's access credential and cached user profile.
//
// # Stores
//
// [MemoryStore] keeps the credential for the life of the process. [RedisStore]
// shares it across processes (CLI invocations, worker pools) under a namespaced
// key, encoded with the compact binary codec in this package.
//
// # Binary encoding
//
// Sessions are stored as a versioned binary blob (v1, v2). Decoding accepts every
// known version; encoding always writes the current one.
//
// # Architecture boundaries
//
// This package never performs HTTP and never interprets token claims. The refresh
// credential is a cookie owned by the HTTP client's jar; [RedisJar] is such a jar,
// mirroring the cookies sent to the refresh endpoint into Redis.
package session
