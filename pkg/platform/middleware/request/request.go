// Package request assigns each inbound request an id and echoes it back in
// the X-Request-ID header.
package request

import (
	"net/http"

	"github.com/google/uuid"

	"conductor/pkg/requestcontext"
)

const Header = "X-Request-ID"

// RequestID reuses a caller-supplied id when present so traces can span
// services, otherwise mints one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), id)
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
