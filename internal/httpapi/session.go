package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/erauner12/attach-gateway/internal/auth"
)

type sessionCtxKey string

const sidKey sessionCtxKey = "attach.sid"

// SessionID returns the full session digest attached by SessionMiddleware,
// or "" if the request never passed through it.
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sidKey).(string)
	return sid
}

// deriveSessionID computes a stable hex digest from (sub, user-agent),
// grounded on the original gateway's session_mw.
func deriveSessionID(sub, userAgent string) string {
	h := sha256.Sum256([]byte(sub + ":" + userAgent))
	return hex.EncodeToString(h[:])
}

// SessionMiddleware implements C4: derives a deterministic session id
// from the authenticated subject and User-Agent, attaches it to the
// request context, and exposes its first 16 hex characters on the
// response. Requires auth.Subject to already be set by C3; if it is
// not, that is treated as a defensive 401 rather than a panic.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || auth.PublicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		sub := auth.Subject(r.Context())
		if sub == "" {
			writeError(w, r, http.StatusUnauthorized, "Unauthenticated")
			return
		}

		sid := deriveSessionID(sub, r.Header.Get("User-Agent"))
		ctx := context.WithValue(r.Context(), sidKey, sid)

		w.Header().Set("X-Attach-Session", sid[:16])
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
