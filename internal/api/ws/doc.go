// Package ws streams the audit history over WebSocket.
//
// A client connecting to /history/stream first receives the events already
// recorded after ?since=n (all of them by default), then every new event as
// it is appended.
//
// Message Types (Server → Client):
//   - event: one audit event
//   - pong: answer to a ping
//   - error: the stream is closing
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//
// Example Usage:
//
//	handler := ws.NewHandler(history, logger).WithMetrics(metrics)
//	router.GET("/history/stream", handler.Stream)
package ws
