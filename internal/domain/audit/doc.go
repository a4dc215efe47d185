// Package audit records every state-changing call made through the platform
// API.
//
// Wrap decorates a platform.API. Accessors (methods whose name starts with
// "Get") pass straight through; every other method emits a CALL event, runs,
// and emits a RESULT or ERROR event that points back at the CALL. Errors
// reach the caller unchanged.
//
// Accessor failures are swallowed: the caller receives a null result and a
// nil error. Only accessors behave this way.
//
// Features:
//   - Single generic dispatch point (Dispatch) shared by every wrapped method
//   - Append-only, ordered Log safe for concurrent writers
//   - Live subscribers for streaming the history
//   - Per-event-type metrics
//
// Example Usage:
//
//	history := audit.NewLog().WithMetrics(metrics)
//	api := audit.Wrap(service, history)
//	res, err := api.DeployContainer(ctx, req)
//	for _, e := range history.Events() { ... }
package audit
