package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/auth"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/repository"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// MemberHeader carries the caller identity asserted by the upstream identity service.
const MemberHeader = "X-Member-ID"

type loggerKey struct{}

func loggerFrom(r *http.Request) *zap.Logger {
	if l, ok := r.Context().Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// Logger is the structured access log. It also makes the logger available
// to handlers for error reporting.
func Logger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			r = r.WithContext(context.WithValue(r.Context(), loggerKey{}, logger))

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

// CORS sets permissive CORS headers for the web client.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+MemberHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Identify loads the calling member named by MemberHeader and stores it in
// the request context.
func Identify(members repository.MemberStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(MemberHeader))
			if id == "" {
				writeError(w, http.StatusUnauthorized, "missing "+MemberHeader+" header")
				return
			}
			m, err := members.GetMember(r.Context(), id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "unknown member")
					return
				}
				respondError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithMember(r.Context(), m)))
		})
	}
}

// Require rejects callers that lack capability c. Routes declare their
// capability once here instead of checking roles inside each handler.
func Require(guard auth.Guard, c auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m, _ := auth.MemberFrom(r.Context())
			if err := guard.Check(m, c); err != nil {
				respondError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
