/*
Package observability provides Prometheus metrics for the protocol engine.

Metrics are fed by lifecycle hooks, so any engine that accepts
domain.LifecycleHooks can be instrumented without touching its code.
*/
package observability
