/*
Package observability provides Prometheus instrumentation for session storage.

Metrics are registered on a caller-supplied prometheus.Registerer so tests and
embedding applications can keep their own registries.
*/
package observability
