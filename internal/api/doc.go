// Package api hosts the HTTP server, middleware, and thread handlers. Notable
// routes:
//   - GET / for the landing form; ?url= is treated like /thread.
//   - GET /thread?url= and GET /profile/{handle}/post/{post_id} for rendered threads.
//   - GET /api/thread/updates for posts appended since a CID, as bare fragments.
//   - GET /healthz / readyz (and /health/live, /health/ready) for probes.
//   - GET /metrics for Prometheus scraping.
package api
