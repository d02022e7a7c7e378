// Package transport holds the HTTP plumbing shared by the relay server:
// handler middleware (panic recovery, request IDs, access logging), the
// JSON error envelope, and the registry of in-flight relays that can be
// cancelled by ID.
//
// Middleware wraps net/http handlers and composes with Chain. The server
// lifecycle (listen, graceful shutdown) lives in transport/http.
package transport
