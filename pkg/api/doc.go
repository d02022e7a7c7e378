// Package api defines the wire-level chat types shared by the relay and the
// answer assembler: chat messages, the request payload sent upstream, tool
// calls, and the typed error taxonomy.
//
// The package performs no I/O. All types produce JSON compatible with the
// OpenAI Chat Completions wire format.
//
// Core types:
//   - [ChatMessage]: one conversation turn (text or multimodal parts)
//   - [RequestPayload]: the body sent to the upstream provider
//   - [ToolCall]: a completed function invocation requested by the model
//   - [APIError]: structured error with type, code, status, and message
package api
