package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/tech-e/apiserver/internal/apperr"
	"go.uber.org/zap"
)

const maxJSONBodyBytes = 1 << 20

var errInvalidBody = apperr.New(apperr.KindInvalidInput, "Invalid request body.")

// ErrorResponse is the body of every failed request. Trace is only filled
// in development.
type ErrorResponse struct {
	Error string `json:"error"`
	Trace string `json:"trace,omitempty"`
}

// ValidationErrorResponse lists per-field failures.
type ValidationErrorResponse struct {
	Errors []apperr.FieldError `json:"errors"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Responder renders classified errors.
type Responder struct {
	logger *zap.Logger
	debug  bool
}

// NewResponder returns a responder. With debug set, internal errors carry
// their cause and a stack trace.
func NewResponder(logger *zap.Logger, debug bool) *Responder {
	return &Responder{logger: logger, debug: debug}
}

// Error writes err with the status of its kind. It satisfies
// auth.RejectFunc.
func (re *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()

	if kind == apperr.KindInternal {
		re.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}

	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		writeJSON(w, status, ValidationErrorResponse{Errors: fields})
		return
	}

	resp := ErrorResponse{Error: apperr.MessageOf(err)}
	if re.debug && kind == apperr.KindInternal {
		resp.Trace = err.Error()
		if stack := apperr.StackOf(err); stack != nil {
			resp.Trace = fmt.Sprintf("%v\n%s", err, stack)
		}
	}
	writeJSON(w, status, resp)
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}
