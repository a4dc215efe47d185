// Package state owns the platform's recoverable runtime state: running
// containers, pending starts, peer connections, backend metadata, reserved
// ports, issued tokens, user credentials and role assignments.
//
// Store is the single writer of that state. Every accessor takes the store's
// lock, so concurrent port reservations never hand out the same port and a
// snapshot never observes half of a multi-field mutation. Accessors return
// copies; callers never hold references into the store.
//
// Persistence:
//   - SaveToFile writes the whole state as JSON (Session.json), replacing the file atomically
//   - LoadFromFile replaces the in-memory state wholesale with the file's content
//   - Persister recovers once at startup, saves on a fixed interval and once
//     more on shutdown, unless the session policy is "discard"
//
// Example Usage:
//
//	store := state.NewStore(state.PortRange{Start: 8082, End: 9082})
//	port, err := store.ReservePort()
//	token := store.IssueToken("admin")
package state
