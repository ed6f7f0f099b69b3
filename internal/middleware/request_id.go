package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Correlation headers.
const (
	RequestIDHeader = "X-Request-ID"
	TraceIDHeader   = "X-Trace-ID"
)

type correlationKey int

const (
	requestIDKey correlationKey = iota
	traceIDKey
)

const maxRequestIDLength = 128

// RequestID tags every request with an id, echoed in X-Request-ID and
// attached to every log line. A well-formed client id is kept; anything
// else is replaced with a fresh UUID. X-Trace-ID is passed through.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validCorrelationID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := setRequestID(r.Context(), id)

		if trace := r.Header.Get(TraceIDHeader); validCorrelationID(trace) {
			w.Header().Set(TraceIDHeader, trace)
			ctx = context.WithValue(ctx, traceIDKey, trace)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validCorrelationID accepts short printable ASCII, which keeps header
// values safe to echo and to log.
func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

func setRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the request id, or "" outside RequestID.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// GetTraceID returns the caller's trace id, if it sent one.
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}
