package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/p-shah256/resume-optimizer/pkg/errors"
	"github.com/p-shah256/resume-optimizer/pkg/logger"
)

type Middleware func(http.HandlerFunc) http.HandlerFunc

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		ctx := logger.WithRequestID(r.Context(), requestID)

		w.Header().Set("X-Request-ID", requestID)

		next(w, r.WithContext(ctx))
	}
}

func Logger(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		requestID := logger.GetRequestID(r.Context())

		slog.Info("Request started", "method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next(rw, r)

		duration := time.Since(start)

		logAttrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"bytes", rw.written,
			"duration_ms", duration.Milliseconds(),
			"request_id", requestID,
		}

		if rw.statusCode >= 500 {
			slog.Error("Request failed with server error", logAttrs...)
		} else if rw.statusCode >= 400 {
			slog.Warn("Request failed with client error", logAttrs...)
		} else {
			slog.Info("Request completed successfully", logAttrs...)
		}
	}
}

// CORS allows any origin and exposes the download and score headers to
// browser clients. Preflight requests stop here.
func CORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", exposedHeaders)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// RateLimit applies a token bucket per client IP. A non-positive rps
// disables it.
func RateLimit(rps float64, burst int) Middleware {
	if rps <= 0 {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}
	if burst < 1 {
		burst = 1
	}
	l := &clientLimiter{limit: rate.Limit(rps), burst: burst, clients: make(map[string]*rate.Limiter)}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r)) {
				requestID := logger.GetRequestID(r.Context())
				w.Header().Set("Retry-After", "1")
				RespondWithError(w, errors.ErrTooManyRequests("rate limit exceeded").WithRequestID(requestID))
				return
			}
			next(w, r)
		}
	}
}

// maxTrackedClients bounds the limiter map; it is reset when full.
const maxTrackedClients = 10000

type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

func (l *clientLimiter) allow(ip string) bool {
	l.mu.Lock()
	lim, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.clients = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[ip] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func MethodChecker(allowedMethods ...string) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			allowed := slices.Contains(allowedMethods, r.Method)

			if !allowed {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusOK)
					return
				}

				requestID := logger.GetRequestID(r.Context())
				w.Header().Set("Allow", strings.Join(allowedMethods, ", "))
				RespondWithError(w, errors.ErrMethodNotAllowed("Method not allowed").WithRequestID(requestID))
				return
			}

			next(w, r)
		}
	}
}

func Recover(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				requestID := logger.GetRequestID(r.Context())
				if requestID == "" {
					// set by RequestID further in
					requestID = w.Header().Get("X-Request-ID")
				}

				slog.Error("PANIC RECOVERED", "error", err, "request_id", requestID, "path", r.URL.Path)

				RespondWithError(w, errors.ErrInternalServer("Unexpected server error occurred").WithRequestID(requestID))
			}
		}()

		next(w, r)
	}
}

// Chain applies middlewares so that the first one is outermost.
func Chain(h http.HandlerFunc, mws ...Middleware) http.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "err", err)
	}
}

func RespondWithError(w http.ResponseWriter, err *errors.ApiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode())

	if encodeErr := json.NewEncoder(w).Encode(err); encodeErr != nil {
		slog.Error("Failed to encode error response", "err", encodeErr)
	}
}
