// Package cmd defines the sklonger CLI.
//
// Architecture overview:
//   - HTTP API: internal/api.Server serves the landing form, rendered threads (from a pasted bsky.app link or the
//     mirrored /profile/{handle}/post/{post_id} path), the /api/thread/updates polling endpoint, health probes and
//     /metrics. Upstream failures map onto HTTP statuses; error pages never echo upstream text.
//   - Resolution: internal/thread resolves the handle to a DID, walks parent links to the root of the self-reply chain,
//     then follows the first same-author reply at each level. Every step is one shallow getPostThread call, and the
//     walk is capped at walker.max_steps fetches.
//   - Upstream: internal/bluesky wraps the indigo XRPC client. Outbound calls pass through a per-host token bucket
//     (internal/policy/ratelimit) and are classified into the thread error taxonomy.
//   - Rendering: internal/render escapes every upstream string and emits post, embed and head markup;
//     internal/page stitches those fragments into the page shell, either in one pass or streamed post by post.
//   - Configuration & plumbing: Viper populates config from env/files (an optional .env is applied first); zap
//     provides structured logging; Prometheus metrics cover HTTP, upstream calls, walk length and thread outcomes.
//
// Operational notes:
//   - The service holds no state across requests. Rendered pages carry a SHA-256 ETag and a short public max-age.
//   - Shutdown: SIGINT/SIGTERM flips readiness to 503 and drains in-flight requests for up to ten seconds.
//
// Quick checklist:
//   - Configure env vars: SKLONGER_SERVER_PORT or PORT, SKLONGER_UPSTREAM_BASE_URL or BLUESKY_API_URL,
//     SKLONGER_SERVER_STREAMING, SKLONGER_WALKER_MAX_STEPS, SKLONGER_LOGGING_LEVEL or LOG_LEVEL.
//   - Run locally: go run . serve --config config.yaml
//   - One-off render: go run . thread https://bsky.app/profile/{handle}/post/{id} --out thread.html
package cmd
