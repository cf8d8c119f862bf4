package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oraclab/oraccore/internal/orerr"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// errorBody is the response shape for every non-2xx response this surface
// returns.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError classifies err via [orerr.KindOf] and writes the matching
// status code, per the core's error taxonomy (§7): ValidationError and
// ConflictError are 4xx, NotFoundError is 404, BackendError and
// InferenceError are 5xx, timeouts are 504.
func writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func statusFor(err error) (int, string) {
	kind := orerr.KindOf(err)
	switch kind {
	case orerr.KindValidation:
		return http.StatusBadRequest, kind.String()
	case orerr.KindConflict:
		return http.StatusConflict, kind.String()
	case orerr.KindNotFound:
		return http.StatusNotFound, kind.String()
	case orerr.KindTimeout:
		return http.StatusGatewayTimeout, kind.String()
	case orerr.KindInference:
		return http.StatusBadGateway, kind.String()
	case orerr.KindBackend:
		return http.StatusInternalServerError, kind.String()
	case orerr.KindCache, orerr.KindConfiguration:
		return http.StatusInternalServerError, kind.String()
	default:
		return http.StatusInternalServerError, "unknown"
	}
}

// classify wraps err as a [orerr.KindNotFound] error when it is (or wraps)
// sentinel, leaving every other error untouched. Handlers use this to give
// a store's plain sentinel error (e.g. mapping.ErrNotFound) the right HTTP
// status without the store package depending on orerr.
func classify(err error, sentinel error, kind orerr.Kind, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel) {
		return orerr.Wrap(kind, op, "not found", err)
	}
	return err
}
