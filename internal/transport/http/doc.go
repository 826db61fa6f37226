// Package http implements the license agent's status API on chi.
//
// Handlers stay thin: they bind and validate requests, call the validator
// through LicenseService and render the result. Errors are rendered as RFC
// 7807 problem details by the shared error handler.
//
// Routes:
//
//	GET  /api/license/status       last validation outcome
//	POST /api/license/validate     validate {"license_key": "..."} now
//	POST /api/license/cache/prune  drop cached records older than retention_days
//	GET  /healthz                  liveness
//	GET  /readyz                   last outcome is online or offline
//	GET  /metrics                  Prometheus exposition
package http
