// Package observe provides observability primitives for cached result production.
//
// It is a pure instrumentation library: no caching, no transport, no I/O
// beyond exporter setup. The cache package calls into an Instrumentation
// around lookups, producer invocations, evictions and sweeps.
package observe
