package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/streamrelay/pkg/api"
)

// StatusClientClosedRequest is the non-standard status logged when the
// client went away before the relay finished.
const StatusClientClosedRequest = 499

var statusByType = map[api.ErrorType]int{
	api.ErrorTypeInvalidRequest:      http.StatusBadRequest,
	api.ErrorTypeNotFound:            http.StatusNotFound,
	api.ErrorTypeUpstreamUnreachable: http.StatusBadGateway,
	api.ErrorTypeUpstreamNonSuccess:  http.StatusBadGateway,
	api.ErrorTypeMalformedFrame:      http.StatusBadGateway,
	api.ErrorTypeEmptyResponse:       http.StatusBadGateway,
	api.ErrorTypeTimeout:             http.StatusGatewayTimeout,
	api.ErrorTypeCancelled:           StatusClientClosedRequest,
}

// HTTPStatusFromError returns the response status for err. Upstream
// non-success errors keep the upstream status when it is an error status.
func HTTPStatusFromError(err *api.APIError) int {
	if err.Type == api.ErrorTypeUpstreamNonSuccess && err.Status >= 400 {
		return err.Status
	}
	if status, ok := statusByType[err.Type]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse writes apiErr in the {"error": {...}} envelope.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes apiErr with the status derived from its type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError writes any error. Errors that are not an *api.APIError are
// reported as server errors.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		apiErr = api.NewServerError(err.Error())
	}
	WriteAPIError(w, apiErr)
}
