/*
Package resilience provides a circuit breaker for calls to container backends
and peer platforms.

# Overview

A backend that keeps failing or timing out is cut off for a while instead of
being hammered by every request. Callers see ErrCircuitOpen immediately and
degrade the way they would for an unreachable backend.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Configurable failure thresholds and timeouts
- Error classification (IsSuccessful) so business errors don't trip the breaker
- Context-aware, generic call helper
- State change callbacks for logging

# Usage

	breaker := resilience.New("docker", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	containers, err := resilience.Call(ctx, breaker, func(ctx context.Context) ([]types.RunningContainer, error) {
		return backend.ListRunningContainers(ctx)
	})

# Pattern

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
