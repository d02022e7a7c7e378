// Package session drives one chat exchange from the client side: it builds
// the upstream payload, sends it through a relay, decodes the streamed
// frames, paces the visible answer, runs requested tools and reports the
// result through callbacks.
//
// A Controller is safe for concurrent use; every call to Chat owns its own
// decoder state, tool-call accumulator and reveal scheduler.
package session
