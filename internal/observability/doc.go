// Package observability provides structured logging and metrics for the
// policy builder.
//
// This package implements:
//   - Process logger construction (zap, optional lumberjack rotation)
//   - Prometheus metrics for HTTP requests, constraint builds, submissions,
//     catalog cache lookups, workspace calls and audit events
//
// All recorders on *Metrics are safe to call on a nil receiver so that
// components can be constructed without metrics in tests.
package observability
