// Package backend abstracts the container orchestrator agent containers run
// on.
//
// A Backend lists, starts and stops containers. Backends that can tell which
// agents a freshly started container hosts implement Describer; backends with
// orchestrator-specific metadata worth keeping implement Inspector.
//
// Guard decorates any Backend so that every call is bounded by a timeout and
// a circuit breaker. A timeout, an open circuit or a transport failure all
// surface as ErrUnavailable, which callers treat as "backend unreachable".
//
// Implementations:
//   - memory: in-process backend for development and tests
//   - docker: Docker Engine adapter
package backend
