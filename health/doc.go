// Package health reports whether a discovery instance can serve requests.
//
// A Checker reports one component: the template store, the result cache, or
// the process heap. An Aggregator runs every registered checker in parallel
// under one deadline and folds the results into a Report whose status is the
// worst of its parts.
//
// The cache never makes an instance unhealthy. Discovery reads fall back to
// the store on any cache failure, so a broken cache only degrades latency and
// is reported as Degraded. A failing store is Unhealthy.
//
// HTTP probes:
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
//	// GET /healthz  liveness, always 200
//	// GET /readyz   200 unless a check is unhealthy
//	// GET /health   JSON report
package health
