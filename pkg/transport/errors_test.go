package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/streamrelay/pkg/api"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		err  *api.APIError
		want int
	}{
		{api.NewInvalidRequestError("model", "missing"), http.StatusBadRequest},
		{api.NewNotFoundError("gone"), http.StatusNotFound},
		{api.NewUpstreamUnreachableError(errors.New("refused")), http.StatusBadGateway},
		{api.NewUpstreamNonSuccessError(http.StatusTooManyRequests, "slow down"), http.StatusTooManyRequests},
		{api.NewUpstreamNonSuccessError(0, "no status"), http.StatusBadGateway},
		{api.NewMalformedFrameError("bad json"), http.StatusBadGateway},
		{api.ErrEmptyResponse, http.StatusBadGateway},
		{api.NewTimeoutError("no response within 1m0s"), http.StatusGatewayTimeout},
		{&api.APIError{Type: api.ErrorTypeCancelled}, StatusClientClosedRequest},
		{api.NewServerError("boom"), http.StatusInternalServerError},
		{&api.APIError{Type: "something_new"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			if got := HTTPStatusFromError(tt.err); got != tt.want {
				t.Errorf("HTTPStatusFromError(%s) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"api error", api.NewInvalidRequestError("model", "is required"), http.StatusBadRequest, "invalid_request"},
		{"wrapped api error", fmt.Errorf("relay: %w", api.NewTimeoutError("late")), http.StatusGatewayTimeout, "timeout"},
		{"plain error", errors.New("disk on fire"), http.StatusInternalServerError, "server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body map[string]map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body["error"]["type"] != tt.wantType {
				t.Errorf("error.type = %v, want %s", body["error"]["type"], tt.wantType)
			}
		})
	}
}
