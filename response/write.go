package response

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

// WriteResponse writes v as a 200 JSON body
func WriteResponse(w http.ResponseWriter, r *http.Request, v interface{}) {
	writeJSON(w, http.StatusOK, v)
}

// WriteError writes e as a JSON body with e.StatusCode
func WriteError(w http.ResponseWriter, r *http.Request, e *Error) {
	writeJSON(w, e.StatusCode, e)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// NotFound answers unknown routes with JSON
func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, ErrNotFound())
}

// MethodNotAllowed answers known routes hit with the wrong method
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, ErrMethodNotAllowed())
}

// Recoverer turns a panic into an ErrUnhandled response and logs it
func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("Recovered from panic in handler",
						zap.String("RequestID", middleware.GetReqID(r.Context())),
						zap.String("Path", r.URL.Path),
						zap.Any("Panic", rvr),
						zap.ByteString("Stack", debug.Stack()),
					)
					WriteError(w, r, ErrUnhandled())
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
