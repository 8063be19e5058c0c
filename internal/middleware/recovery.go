package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// Recovery keeps one broken handler from taking the dispatcher down. The
// panic is logged with the request id and stack; the caller gets a 500
// unless the handler had already started its answer, in which case the
// partial response stands.
func Recovery(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				RequestLogger(r.Context(), logger).Error("Panic recovered",
					zap.Any("error", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("stack", string(debug.Stack())),
				)

				if headerWritten(w) {
					return
				}
				WriteError(w, r, http.StatusInternalServerError, ErrorCodeInternal, ErrorMessageInternal)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// headerWritten reports whether the status line already went out. Only the
// Logger's writer tracks this; other writers are assumed untouched.
func headerWritten(w http.ResponseWriter) bool {
	rw, ok := w.(*responseWriter)
	return ok && rw.written
}
