package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rhuss/streamrelay/pkg/api"
	"github.com/rhuss/streamrelay/pkg/debug"
	"github.com/rhuss/streamrelay/pkg/transport"
)

// RelayIDHeader carries the relay ID that DELETE {prefix}/relays/{id}
// accepts. GET {prefix}/relays lists the relays still running.
const RelayIDHeader = transport.RelayIDHeader

// HandlerConfig configures the HTTP surface of a Relay.
type HandlerConfig struct {
	// RoutePrefix is stripped from inbound paths, e.g. "/api/google".
	RoutePrefix string
	// ServerAPIKey is used when the inbound request carries no key.
	ServerAPIKey string
}

// Handler exposes a Relay over HTTP.
type Handler struct {
	relay    *Relay
	prefix   string
	apiKey   string
	inflight *transport.InFlightRegistry
}

// NewHandler creates a Handler. A nil registry disables relay cancellation
// by ID.
func NewHandler(r *Relay, cfg HandlerConfig, inflight *transport.InFlightRegistry) *Handler {
	if inflight == nil {
		inflight = transport.NewInFlightRegistry()
	}
	return &Handler{
		relay:    r,
		prefix:   normalizePrefix(cfg.RoutePrefix),
		apiKey:   cfg.ServerAPIKey,
		inflight: inflight,
	}
}

func normalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// Register adds the relay routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("OPTIONS "+h.prefix+"/{path...}", h.handleOptions)
	mux.HandleFunc("GET "+h.prefix+"/relays", h.handleList)
	mux.HandleFunc("DELETE "+h.prefix+"/relays/{id}", h.handleCancel)
	mux.HandleFunc("POST "+h.prefix+"/{path...}", h.handleForward)
	mux.HandleFunc("GET "+h.prefix+"/{path...}", h.handleForward)
}

func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"body": "OK"})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"relays": h.inflight.List()})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateRelayID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "invalid relay ID format"))
		return
	}
	if !h.inflight.Cancel(id) {
		transport.WriteAPIError(w, api.NewNotFoundError("relay "+id+" is not in flight"))
		return
	}
	slog.Info("relay cancelled", "relay_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleForward(w http.ResponseWriter, r *http.Request) {
	key := h.resolveAPIKey(r)
	if key == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error":   true,
			"message": "missing upstream api key in server configuration",
		})
		return
	}

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				transport.WriteErrorResponse(w, api.NewInvalidRequestError("", "request body too large"), http.StatusRequestEntityTooLarge)
				return
			}
			transport.WriteAPIError(w, api.NewInvalidRequestError("", "failed to read request body: "+err.Error()))
			return
		}
	}

	req := &Request{
		Method:   r.Method,
		Path:     "/" + r.PathValue("path"),
		RawQuery: r.URL.RawQuery,
		Body:     body,
		Stream:   wantsStream(r, body),
		APIKey:   h.formatKey(key),
	}

	relayID := api.NewRelayID()
	model := gjson.GetBytes(body, "model").String()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	release := h.inflight.Register(transport.InFlight{
		ID:     relayID,
		Path:   req.Path,
		Model:  model,
		Stream: req.Stream,
	}, cancel)
	defer release()

	slog.Info("relaying request",
		"relay_id", relayID,
		"request_id", transport.RequestIDFromContext(r.Context()),
		"path", req.Path,
		"model", model,
		"stream", req.Stream,
	)

	res, err := h.relay.Send(ctx, req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	defer res.Body.Close()

	for k, vs := range res.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Del("Content-Length")
	w.Header().Set(RelayIDHeader, relayID)
	w.WriteHeader(res.Status)

	if err := copyFlushing(w, res.Body); err != nil && ctx.Err() == nil {
		debug.Log(debug.Relay, "response copy ended", "relay_id", relayID, "error", err)
	}
}

// resolveAPIKey returns the credential from x-goog-api-key or a bearer
// Authorization header, falling back to the server key.
func (h *Handler) resolveAPIKey(r *http.Request) string {
	raw := r.Header.Get("x-goog-api-key")
	if raw == "" {
		raw = r.Header.Get("Authorization")
	}
	token := strings.TrimSpace(strings.ReplaceAll(raw, "Bearer ", ""))
	if token != "" {
		return token
	}
	return h.apiKey
}

// formatKey renders the credential for the configured upstream header.
func (h *Handler) formatKey(key string) string {
	if strings.EqualFold(h.relay.cfg.APIKeyHeader, "Authorization") {
		return "Bearer " + key
	}
	return key
}

// wantsStream selects the streaming relay: alt=sse, an event-stream Accept
// header, or "stream": true in the JSON body.
func wantsStream(r *http.Request, body []byte) bool {
	if r.URL.Query().Get("alt") == "sse" {
		return true
	}
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return true
	}
	return len(body) > 0 && gjson.GetBytes(body, "stream").Bool()
}

// copyFlushing copies src to w, flushing after every chunk.
func copyFlushing(w http.ResponseWriter, src io.Reader) error {
	rc := http.NewResponseController(w)
	buf := make([]byte, 32<<10)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
