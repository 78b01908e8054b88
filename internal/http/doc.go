// Package http provides the health and admin HTTP surface of the CRM bridge.
//
// The router exposes the following endpoints:
//   - GET /health, GET /: liveness report
//     {"status","timestamp","uptime_seconds","storage","version"}. Responds 200
//     when the store answers a ping and 503 otherwise.
//   - GET /stats: adapter cache statistics (store counts plus cached contacts).
//   - DELETE /cache: clears the CRM partition of the TTL cache. Response {"cleared"}.
//   - POST /cache/sweep: removes expired cache entries. Response {"removed"}.
//   - GET /members/platform/{id}, GET /members/email/{email}: cache-aside
//     member lookups exchanging the `memberDTO` payload defined in
//     member_handler.go. 404 when neither the store nor the CRM knows the member.
//   - GET /metrics: Prometheus exposition, when a metrics handler is configured.
package http
