// Package api hosts the HTTP server, middleware, and JSON handlers of the
// newsroom edge. Notable routes:
//   - GET /healthz and /readyz for Kubernetes liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/geocode/reverse proxies reverse geocoding lookups.
//   - POST /api/videos/{id}/increment-views bumps a video's view counter.
//   - GET /api/articles/{slug} serves a cache-first article view with an ETag.
//   - POST /api/prefetch/{slug} records a hover or touch intent.
package api
