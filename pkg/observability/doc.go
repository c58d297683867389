/*
Package observability provides Prometheus instrumentation for the dispatch protocol.

Metrics are exposed as domain.LifecycleHooks so that every transport is
measured the same way without knowing about Prometheus.
*/
package observability
