package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// PublicPaths bypass authentication entirely: auth bootstrap and API
// documentation (spec §4.3, §6).
var PublicPaths = map[string]bool{
	"/auth/config":  true,
	"/docs":         true,
	"/redoc":        true,
	"/openapi.json": true,
}

// MiddlewareConfig wires the direct verifier and, optionally, the
// token-exchange fallback path.
type MiddlewareConfig struct {
	Verifier *Verifier

	// Exchange, when non-nil, is tried after a transient verification
	// failure (unknown kid / issuer). ExchangeVerifier re-checks the
	// token the exchange endpoint returns, against the provider-specific
	// issuer/audience.
	Exchange         *ExchangeClient
	ExchangeVerifier *Verifier
}

// Middleware implements C3: extract the bearer token, verify it (with an
// optional token-exchange second chance), and attach the subject to the
// request context.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || PublicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeAuthError(w, "Missing Bearer token")
				return
			}
			token := strings.TrimPrefix(header, "Bearer ")

			claims, err := cfg.Verifier.Verify(r.Context(), token)
			if err != nil {
				kind := KindOf(err)
				if kind.Permanent() || cfg.Exchange == nil || !kind.Transient() {
					log.Warn().Err(err).Msg("jwt verification failed")
					writeAuthError(w, err.Error())
					return
				}

				claims, err = exchangeAndVerify(r, cfg, token, err)
				if err != nil {
					log.Warn().Err(err).Msg("jwt verification failed after exchange")
					writeAuthError(w, err.Error())
					return
				}
			}

			ctx := WithSubject(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func exchangeAndVerify(r *http.Request, cfg MiddlewareConfig, token string, directErr error) (*Claims, error) {
	externalIssuer, err := PeekIssuer(token)
	if err != nil {
		return nil, newError(KindExchangeFailed, "cannot extract issuer for exchange", err)
	}

	trusted, err := cfg.Exchange.Exchange(r.Context(), token, externalIssuer)
	if err != nil {
		return nil, newError(KindExchangeFailed, "direct="+directErr.Error()+"; exchange failed", err)
	}

	verifier := cfg.ExchangeVerifier
	if verifier == nil {
		verifier = cfg.Verifier
	}
	claims, err := verifier.Verify(r.Context(), trusted)
	if err != nil {
		return nil, newError(KindExchangeFailed, "direct="+directErr.Error()+"; exchanged token rejected", err)
	}
	return claims, nil
}

func writeAuthError(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
