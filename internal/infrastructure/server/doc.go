// Package server wires the agent platform together and serves it over HTTP.
//
// Server Lifecycle:
//  1. Validate configuration
//  2. Initialize logger, metrics and tracer
//  3. Create the state store and recover the last snapshot
//  4. Load object schemas and build the argument validator
//  5. Connect the container backend (memory or Docker)
//  6. Create the platform service behind the audit interceptor
//  7. Setup HTTP routes and middleware
//  8. Start the snapshot loop and serve
//  9. On shutdown, write a final snapshot and close the backend
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go srv.Run()
//	defer srv.Shutdown(context.Background())
package server
