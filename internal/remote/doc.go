/*
Package remote talks HTTP to other processes of the platform: peer platforms
(federation) and running agent containers (action invocation).

# Features

- resty client over a retryablehttp transport (exponential backoff on
  connection errors and 5xx responses)
- Circuit breaker shared by all calls of a client
- Optional client-side rate limiting
- sonic as the JSON codec
- Peer API: PlatformConfig (GET /info), Containers (GET /containers)
- Container API: Invoke (POST /invoke/{action}/{agent})

Errors:
  - *StatusError for answers with a 4xx status (the remote understood and refused)
  - ErrUnavailable for transport failures, 5xx after retries and open circuits

# Example Usage

	client := remote.NewClient(remote.DefaultOptions(), logger)
	info, err := client.PlatformConfig(ctx, "http://peer:8000", token)
	result, err := client.Invoke(ctx, container.Connectivity.PublicURL, "Add", "calc", args, "")
*/
package remote
