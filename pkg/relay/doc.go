// Package relay forwards chat-completion requests to an upstream provider
// and streams the response back without buffering it.
//
// While a streaming upstream has not produced its first byte, the relay
// writes synthetic heartbeat frames so proxies and clients keep the
// connection open. The first genuine upstream byte disables heartbeats for
// the rest of the stream; from then on upstream bytes are copied verbatim.
// Upstream failures in streaming mode become a single in-band error frame:
//
//	data: {"error":"<upstream body or network error>"}
//
// [Handler] exposes the relay over HTTP.
package relay
