package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/frahmantamala/payment-core/internal"
	"github.com/frahmantamala/payment-core/pkg/logger"
)

const (
	HeaderTraceID = "X-Trace-ID"
	HeaderStaffID = "X-Staff-ID"
)

// RequestID resolves the trace id and acting staff member of a request and
// attaches both to the context logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(HeaderTraceID)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := logger.With(r.Context(), "trace_id", traceID)

		// staff acting on payments are recorded on every transaction they create
		if staffID := r.Header.Get(HeaderStaffID); staffID != "" {
			ctx = internal.ContextWithStaffID(ctx, staffID)
			ctx = logger.With(ctx, "staff_id", staffID)
		}

		w.Header().Set(HeaderTraceID, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
