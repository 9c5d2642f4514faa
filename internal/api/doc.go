// Package api hosts the HTTP server, middleware, and handlers. Routes:
//   - GET / describes the service and its endpoints.
//   - GET /scrape runs one scrape and reports {success, count} or {success, error}.
//     The status code is 200 either way; callers inspect the body.
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
package api
