// Package http exposes the platform API over REST with gin.
//
// Every route goes through the audited platform.API, so state-changing
// requests land in the audit history. Accessors that fail come back empty
// from the audit layer; the handlers turn an empty single-resource lookup
// into 404.
//
// Routes:
//   - GET /health, GET /info, GET /stats, GET /provisions
//   - GET|POST /containers, GET|DELETE /containers/:id, POST /containers/:id/confirm
//   - GET /pending
//   - POST /invoke/:action
//   - GET|POST /connections, DELETE /connections/:id, GET /connections/:id/containers
//   - POST /login, POST /users, DELETE /users/:name
//   - GET /history, GET /schemas, POST /schemas/:type
//
// Errors are reported as {"error": "..."} with a status derived from the
// error's identity (see StatusFor).
package http
