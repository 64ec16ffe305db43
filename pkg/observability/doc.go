// Package observability provides the service-level logging, metrics and
// health plumbing shared by the accessgate binary and its packages.
//
// Structured logging is a thin wrapper over slog with field chaining and
// context propagation. Metrics are Prometheus collectors for the HTTP
// surface; the decision and cache counters live with the gate and
// decisioncache packages that own them. Health checks probe the
// administrative store and, when configured, Redis.
package observability
