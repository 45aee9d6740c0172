// Package cache provides an asynchronous result cache.
//
// AsyncCache stores the results of producer functions under comparable keys.
// It guarantees at most one outstanding producer call per key, serves fresh
// entries without side effects, optionally serves stale entries while a single
// background refresh runs (stale-while-revalidate), and bounds its size with
// FIFO eviction. Consumers compose keys with Key so that InvalidateBy
// predicates such as Scope can drop exactly the entries a mutation affects.
//
// Entry lifecycle:
//
//	absent -> fresh -> stale (servable while SWR applies) -> fully expired -> absent
//
// Transitions are driven by clock comparisons and only observed at read or
// sweep time.
package cache
