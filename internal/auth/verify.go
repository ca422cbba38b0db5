package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// acceptedAlgs is the closed set of signature algorithms this verifier
// will ever attempt to check (spec §3: "algorithm is one of the two
// accepted").
var acceptedAlgs = []string{"RS256", "ES256"}

// Claims is the subset of the decoded JWT payload downstream components
// consume.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Raw       jwt.MapClaims
}

// Config configures a Verifier.
type Config struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Verifier implements C1: JWKS-backed JWT verification for RS256/ES256
// bearer tokens.
type Verifier struct {
	cfg  Config
	jwks *JWKSCache
}

// NewVerifier builds a Verifier backed by the given JWKS cache.
func NewVerifier(cfg Config, jwks *JWKSCache) *Verifier {
	return &Verifier{cfg: cfg, jwks: jwks}
}

// Verify implements the algorithm in spec §4.1: inspect the unverified
// header, resolve the signing key (refreshing the JWKS at most once on a
// kid miss), verify the signature, then check iss/aud/exp/iat.
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, newError(KindMissingBearer, "empty token", nil)
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	unverified, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, newError(KindMalformed, "unparsable token", err)
	}

	alg, _ := unverified.Header["alg"].(string)
	if !isAccepted(alg) {
		return nil, newError(KindAlgNotAllowed, fmt.Sprintf("alg %q not allowed", alg), nil)
	}

	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, newError(KindKidMissing, "missing kid in token header", nil)
	}

	key, err := v.jwks.Get(ctx, v.cfg.Issuer, kid)
	if err != nil {
		return nil, err
	}

	claims := jwt.MapClaims{}
	leeway := v.cfg.Leeway
	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods(acceptedAlgs),
		jwt.WithLeeway(leeway),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, classifyParseError(err)
	}

	issuer, _ := claims.GetIssuer()
	if v.cfg.Issuer != "" && issuer != v.cfg.Issuer {
		return nil, newError(KindMalformed, fmt.Sprintf("unexpected issuer %q", issuer), nil)
	}

	aud, _ := claims.GetAudience()
	if v.cfg.Audience != "" && !contains(aud, v.cfg.Audience) {
		return nil, newError(KindMalformed, fmt.Sprintf("audience %v does not contain %q", aud, v.cfg.Audience), nil)
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, newError(KindMalformed, "missing sub claim", nil)
	}

	iat, _ := claims.GetIssuedAt()
	exp, _ := claims.GetExpirationTime()

	out := &Claims{
		Subject:  sub,
		Issuer:   issuer,
		Audience: aud,
		Raw:      claims,
	}
	if iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return newError(KindExpired, "token expired", err)
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return newError(KindExpired, "token issued in the future", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return newError(KindMalformed, "invalid signature", err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newError(KindMalformed, "malformed token", err)
	default:
		return newError(KindMalformed, "token verification failed", err)
	}
}

// PeekIssuer extracts the iss claim without verifying the token, used to
// discover which external issuer to present to the exchange endpoint.
func PeekIssuer(token string) (string, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return "", newError(KindMalformed, "unparsable token", err)
	}
	iss, _ := claims.GetIssuer()
	if iss == "" {
		return "", newError(KindMalformed, "token has no issuer claim", nil)
	}
	return iss, nil
}

func isAccepted(alg string) bool {
	for _, a := range acceptedAlgs {
		if a == alg {
			return true
		}
	}
	return false
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
