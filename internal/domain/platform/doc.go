/*
Package platform implements the public API of an agent platform: deploying
and stopping agent containers, invoking agent actions, federating with peer
platforms and authenticating users.

Service is the plain implementation. It never records audit events itself;
the composition root hands callers audit.Wrap(service) instead, so every
non-accessor call is recorded without the service knowing.

# Features

- Deployments gated by capability requirements (MissingRequirementsError)
- Port reservation and pending starts with full rollback on failure
- Confirmation of containers that describe themselves late
- Action invocation with strict argument validation (InvalidArgumentsError)
- Peer platforms contribute their containers to provisions
- bcrypt user credentials and opaque bearer tokens

Methods whose names start with "Get" are pure accessors.
*/
package platform
