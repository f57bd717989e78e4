// Package wellknown caches per-server well-known configuration.
//
// Lookups never touch the network: they read a bigcache hot tier and fall
// back to the durable store. A server that was never fetched is reported
// with ok == false. Stale entries are still served while a single background
// refresh runs; refreshes for the same server are coalesced.
package wellknown
