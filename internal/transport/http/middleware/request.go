package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/v3kn/internal/logging"
)

const requestIDKey contextKey = "request_id"

// RequestID attaches a correlation ID to every request's context and
// response header, the ambient tracing concern every server in the pack
// carries regardless of domain.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func clientCountry(r *http.Request) string {
	if c := r.Header.Get("CF-IPCountry"); c != "" {
		return c
	}
	return "XX"
}

// DomainLog appends one domain-log line per request, skipping the
// emulator's own Vita3K traffic (the overwhelming majority of requests)
// so the log stays readable for operators watching real client activity.
func DomainLog(domainLog *logging.Domain) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ua := r.Header.Get("User-Agent")
			if !strings.Contains(ua, "Vita3K") {
				domainLog.Logf("%s %s remote=%s country=%s ua=%s", r.Method, r.URL.Path, clientIP(r), clientCountry(r), ua)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Recover turns a panicking handler into a 500 instead of killing the
// connection, logging the panic via the operational logger.
func Recover(opLog *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					opLog.Error("panic recovered", "panic", rec, "path", r.URL.Path, "request_id", RequestIDFromContext(r.Context()))
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// MaxBody enforces the 100 MiB payload cap (spec §6) via
// http.MaxBytesReader, net/http's closest equivalent to httplib's
// set_payload_max_length.
func MaxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
