package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"aakar-gateway/internal/model"
	"aakar-gateway/pkg/apierror"
)

const (
	maxJSONBodyBytes = 1 << 20
	msgInternal      = "Something went wrong, please try again"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders {"error": message}. Anything that is not a classified
// client error is logged and reported with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := msgInternal

	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.HTTPStatus < http.StatusInternalServerError:
		status = apiErr.HTTPStatus
		message = apiErr.Message
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
		message = "Invalid input"
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusBadRequest
		message = "Invalid credentials"
	case errors.Is(err, model.ErrUnauthorized):
		status = http.StatusUnauthorized
		message = "Access token required"
	case errors.Is(err, model.ErrForbidden), errors.Is(err, model.ErrInvalidToken):
		status = http.StatusForbidden
		message = "Invalid or expired token"
	case errors.Is(err, model.ErrUserNotFound):
		status = http.StatusNotFound
		message = "User not found"
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error())
	}

	writeJSON(w, status, model.ErrorResponse{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierror.Wrap(model.ErrValidation, "BAD_REQUEST", "Invalid JSON body", "", http.StatusBadRequest)
	}
	return nil
}
