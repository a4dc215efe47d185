/*
Package tracing provides lightweight request tracing across platforms.

A request entering the HTTP API gets a trace (req_ ULID) unless the caller
already sent one. The trace travels in the request context and is forwarded
on every call the remote client makes, so a deployment that fans out to peer
platforms and agent containers can be followed through their logs.

# Usage

	tracer := tracing.New("platform", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	// outgoing calls
	tracing.Inject(ctx, req.Header)

# Trace Format

  - X-Trace-ID: identifier of the whole request flow
  - X-Span-ID: identifier of the calling operation

Finished spans are written to the logger at debug level, or warn level when
the request failed. Collection is buffered (1000 spans); spans are dropped
rather than blocking requests.
*/
package tracing
