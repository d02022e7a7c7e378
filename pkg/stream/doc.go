// Package stream turns an OpenAI-compatible event stream into typed deltas.
//
// A [Reader] splits the raw response body into "data:" payloads, [Decode]
// converts each payload into zero or more [Delta] values (reasoning text,
// answer text, tool-call fragments, the terminal marker, or a malformed
// frame), and an [Accumulator] merges tool-call fragments that arrive split
// across many deltas into complete calls.
//
// Malformed frames never abort a stream: they surface as [KindMalformed]
// deltas so callers can log them and continue.
package stream
