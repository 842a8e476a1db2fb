// Package cachestore memoizes expensive upstream computations behind a
// persistent store addressed by (cache key, scope).
//
// Two scope families exist:
//   - daily:<YYYY-MM-DD> holds one value per calendar day. Writing a new day
//     purges every other daily scope under the same key.
//   - ttl holds a single slot that expires a fixed number of seconds after
//     it was written.
//
// The memoization algorithm lives once in Store and runs against any Backend:
// a directory of JSON files, Redis, SQLite, or process memory. A Store without
// a backend runs disabled and computes on every call.
package cachestore
