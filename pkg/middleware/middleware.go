// Package middleware holds the HTTP middleware stack shared by all API
// controllers.
package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/northbeam/capitalgate/pkg/identity"
)

type contextKey string

const (
	requestIDKey contextKey = "requestID"
	principalKey contextKey = "principal"
)

// Identity headers populated by the authenticating reverse proxy. Any
// subset may be present; matching downstream requires only one.
const (
	HeaderUserID   = "X-User-Id"
	HeaderEmail    = "X-User-Email"
	HeaderObjectID = "X-User-Object-Id"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// WithLogger tags every request with an id, logs method/path/status/latency
// and converts handler panics into a 500 instead of killing the server.
func WithLogger(log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()

			defer func() {
				if rec := recover(); rec != nil {
					log.WithFields(logrus.Fields{
						"requestId": requestID,
						"panic":     rec,
						"stack":     string(debug.Stack()),
					}).Error("request handler panicked")
					if sw.status == 0 {
						http.Error(sw, "internal server error", http.StatusInternalServerError)
					}
				}
				log.WithFields(logrus.Fields{
					"requestId": requestID,
					"method":    r.Method,
					"path":      r.URL.Path,
					"status":    sw.Status(),
					"duration":  time.Since(start).String(),
				}).Info("request completed")
			}()

			next.ServeHTTP(sw, r.WithContext(ctx))
		})
	}
}

// WithPrincipal lifts the proxy-supplied identity headers into the request
// context. Requests without any identity still pass; services answer them
// with the generic not-assigned error where identity matters.
func WithPrincipal() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := identity.Principal{
				UserID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
				Email:    strings.TrimSpace(r.Header.Get(HeaderEmail)),
				ObjectID: strings.TrimSpace(r.Header.Get(HeaderObjectID)),
			}
			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UsePrincipal returns the caller identity set by WithPrincipal.
func UsePrincipal(ctx context.Context) identity.Principal {
	p, _ := ctx.Value(principalKey).(identity.Principal)
	return p
}

// UseRequestID returns the request id set by WithLogger.
func UseRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
