package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// appError is the structured error an appHandler may return instead of
// writing a response itself.
type appError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
	cause   error
}

func (e *appError) Error() string { return e.Message }

func appErrorBadRequest(cause error, message string) *appError {
	return &appError{Code: http.StatusBadRequest, Message: message, cause: cause}
}

// appErrorUnprocessable rejects a request whose polygon or origin
// string fails validation.
func appErrorUnprocessable(cause error, message string) *appError {
	return &appError{Code: http.StatusUnprocessableEntity, Message: message, cause: cause}
}

func appErrorNotFound(cause error, message string) *appError {
	return &appError{Code: http.StatusNotFound, Message: message, cause: cause}
}

func appErrorInternal(cause error, message string) *appError {
	return &appError{Code: http.StatusInternalServerError, Message: message, cause: cause}
}

// appErrorGone reports a job that reached SUCCESS but whose artifact
// is no longer present on disk.
func appErrorGone(cause error, message string) *appError {
	return &appError{Code: http.StatusGone, Message: message, cause: cause}
}

// appHandler is an http.HandlerFunc that may fail with a typed
// appError instead of writing the response itself; ServeHTTP is where
// that error is finally logged and serialized.
type appHandler func(w http.ResponseWriter, r *http.Request) *appError

func (fn appHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := fn(w, r); err != nil {
		if err.cause != nil {
			logrus.WithError(err.cause).WithField("status", err.Code).Warn(err.Message)
		} else {
			logrus.WithField("status", err.Code).Warn(err.Message)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(err.Code)
		_ = json.NewEncoder(w).Encode(err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) *appError {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return appErrorInternal(err, "failed to encode response")
	}
	return nil
}
