package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/infra/logging"
)

const maxBodyBytes = 64 << 10

var errMalformed = errors.New("malformed request body")

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps an error kind onto the HTTP status returned to clients.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindInvalidPlan:
		return http.StatusUnprocessableEntity
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyUsed:
		return http.StatusConflict
	case domain.KindExpired:
		return http.StatusGone
	case domain.KindGateway:
		return http.StatusBadGateway
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError renders err. Server-side failures are logged and their detail
// withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	if errors.Is(err, errMalformed) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed", Message: err.Error()})
		return
	}
	kind := domain.KindOf(err)
	status := statusFor(kind)
	body := errorBody{Error: kind.String(), Message: err.Error()}
	if status >= 500 {
		logging.With(r.Context(), logger).Error().Err(err).Str("kind", kind.String()).Msg("request failed")
		if kind != domain.KindGateway {
			body.Message = "internal error"
		} else {
			body.Message = "payment gateway unavailable"
		}
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errMalformed
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }
