package httpapi

import (
	"encoding/json"
	"net/http"

	dErrors "soundvault/pkg/domain-errors"
	"soundvault/pkg/requestcontext"
)

// errorBody is the JSON error envelope. Every non-2xx response uses it.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps domain error codes to HTTP statuses. This is the only place
// the mapping exists.
func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodePaymentGateway:
		return http.StatusBadGateway
	case dErrors.CodePaymentDisabled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err through the envelope. Internal detail is logged,
// never sent.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	status := statusFor(code)
	if status >= 500 {
		s.logger.ErrorContext(r.Context(), "request failed",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
			"path", r.URL.Path,
		)
	}
	writeJSON(w, status, errorBody{Error: string(code), Message: dErrors.MessageOf(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a request body into dst, rejecting unknown garbage with a
// bad-request error.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "request body is not valid JSON")
	}
	return nil
}
