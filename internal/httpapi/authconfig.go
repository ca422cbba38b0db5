package httpapi

import "net/http"

// AuthConfig exposes GET /auth/config: the unauthenticated bootstrap
// payload clients use to configure their own OIDC flow.
func AuthConfig(domain, clientID, audience string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"domain":    domain,
			"client_id": clientID,
			"audience":  audience,
		})
	}
}
