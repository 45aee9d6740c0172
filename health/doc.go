// Package health reports whether result caches and their dependencies can
// serve.
//
// A Checker reports a Result with a Status: Healthy, Degraded or Unhealthy.
// CacheChecker classifies a cache from its stats:
//
//	checker, err := health.NewCacheChecker("settings", settingsCache)
//	if err != nil {
//	    return err
//	}
//
// An Aggregator runs many checkers concurrently, each under its own timeout,
// and folds the results to the worst status:
//
//	agg := health.NewAggregator(health.AggregatorConfig{CheckTimeout: time.Second})
//	agg.Register("settings", checker)
//	overall := agg.OverallStatus(agg.CheckAll(ctx))
//
// # HTTP Endpoints
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg) // /healthz, /readyz, /health, /health/{name}
package health
