package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const HeaderSessionID = "X-Session-Id"

const maxSessionIDLength = 128

type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// RequireSessionID rejects requests without an X-Session-Id header and stores
// the id in the request context.
func RequireSessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := strings.TrimSpace(r.Header.Get(HeaderSessionID))
		if sid == "" || len(sid) > maxSessionIDLength || strings.ContainsAny(sid, ": \t") {
			writeError(w, r, http.StatusBadRequest, "missing or invalid header: X-Session-Id")
			return
		}
		ctx := context.WithValue(r.Context(), ctxSessionID, sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetSessionID(ctx context.Context) string {
	if v := ctx.Value(ctxSessionID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:         msg,
		CorrelationID: GetCorrelationID(r.Context()),
	})
}
