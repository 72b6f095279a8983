// Package cache provides a small multi-backend cache abstraction.
//
// Backends:
//   - Memory (in-process, for development/testing)
//   - Redis (shared, for production)
package cache

import "time"

// Cache are the operations the service needs: byte values with per-key TTL.
type Cache interface {
	Get(k string) ([]byte, bool)
	Set(k string, v []byte, ttl time.Duration)
	Delete(k string)
}
