package service

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ctxKey mirrors middle.AuthKey: a private int type so context values
// can't collide with keys set by other packages.
type ctxKey int

const (
	ctxTraceID ctxKey = iota
	ctxAPIKey
)

// TraceID returns the request's trace ID, set by the WithTraceID middleware.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(ctxTraceID).(string)
	return id
}

// AuthenticatedKey returns the APIKey RequireBearer resolved for this
// request, or the zero value if none (only reachable if RequireBearer was
// skipped).
func AuthenticatedKey(ctx context.Context) APIKey {
	key, _ := ctx.Value(ctxAPIKey).(APIKey)
	return key
}

// WithTraceID stamps every request with a fresh UUID trace ID, grounded on
// server.go's general "uuid for anything identifying a single request or
// entity" convention, generalized from entity IDs to request trace IDs.
func WithTraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id, err := uuid.NewRandom()
		var idStr string
		if err != nil {
			idStr = "unavailable"
		} else {
			idStr = id.String()
		}
		w.Header().Set("X-Trace-Id", idStr)
		ctx := context.WithValue(req.Context(), ctxTraceID, idStr)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// RequireBearer is grounded on middle.RequireAuth: it extracts a bearer
// token, validates it via VerifyToken, and either rejects the request or
// attaches the resolved APIKey to its context for downstream handlers.
func RequireBearer(lookup func(context.Context, uuid.UUID) (APIKey, error), serviceSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			authz := req.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(authz, prefix) {
				writeError(w, req, http.StatusUnauthorized, "missing bearer token")
				return
			}
			tok := strings.TrimPrefix(authz, prefix)

			key, err := VerifyToken(req.Context(), tok, serviceSecret, lookup)
			if err != nil {
				writeError(w, req, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(req.Context(), ctxAPIKey, key)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

// RecoverPanic is grounded on api.go's panicTo500/middle.go's DontPanic:
// any panic reaching this middleware is converted into an HTTP-500 with
// the stack trace logged server-side, never leaked to the client.
func RecoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				log.Printf("PANIC %s %s [trace=%s]: %v\n%s", req.Method, req.URL.Path, TraceID(req.Context()), p, debug.Stack())
				writeError(w, req, http.StatusInternalServerError, "an internal server error occurred")
			}
		}()
		next.ServeHTTP(w, req)
	})
}

// logRequests is grounded on api.go's logHttpResponse: one line per
// request, remote IP without its ephemeral port, method, path, and elapsed
// time.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		remoteIP := req.RemoteAddr
		if idx := strings.LastIndexByte(remoteIP, ':'); idx >= 0 {
			remoteIP = remoteIP[:idx]
		}
		next.ServeHTTP(w, req)
		log.Printf("%s %s %s [trace=%s] %s", remoteIP, req.Method, req.URL.Path, TraceID(req.Context()), time.Since(start))
	})
}

func writeError(w http.ResponseWriter, req *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q,"status":%d}`, msg, status)
}
