// Package http exposes the occupancy statistics engine over JSON.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}. Response:
//     {"token","expires_at","principal"} with the token also surfaced via the
//     `X-Session-Token` header and a `session_token` cookie.
//   - DELETE /sessions/current: ends the caller's session and drops the caller's
//     cached statistics views. Returns 204 No Content and clears the cookie.
//   - GET /stats: the caller's aggregate as {"data","stale","partial","failed_camps"}.
//     Per-site figures appear both keyed (`per_site`) and as an ordered list (`sites`).
//   - POST /stats/invalidate: drops cached views touching {"camp_id"} or {"site"}.
//   - GET /sites: the site registry in Turkish collation order.
//   - GET, POST /camps; PUT, DELETE /camps/{id}; POST /camps/{id}/join and /leave.
//   - GET, POST /camps/{id}/rooms; POST /camps/{id}/rooms/import; PUT, DELETE /rooms/{id}.
//   - GET /camps/{id}/workers; POST /rooms/{id}/workers; POST /camps/{id}/workers/import;
//     PUT, DELETE /workers/{id}; POST /workers/{id}/move with {"room_id"}.
//   - GET /metrics: Prometheus exposition of the cache and aggregation metrics.
//
// Every route except POST /sessions and GET /metrics requires a session.
// Request/response DTOs live alongside their respective handlers.
package http
