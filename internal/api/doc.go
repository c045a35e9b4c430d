// Package api hosts the HTTP server and middleware that trigger pipeline runs.
// Notable routes:
//   - /v1/fetch and /v1/load (any method) run one stage and reply with a
//     plain-text message.
//   - GET /healthz / readyz for platform probes.
//   - GET /metrics for Prometheus scraping.
package api
