package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultJWKSTTL is how long a fetched JWKS snapshot is considered fresh
// before a routine (non-forced) refresh is attempted.
const DefaultJWKSTTL = 600 * time.Second

// jwksResponse mirrors the wire format of a standard JWKS document.
type jwksResponse struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	// RSA
	N string `json:"n"`
	E string `json:"e"`
	// EC
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// snapshot is an immutable JWKS fetch: a fetch timestamp plus the decoded
// public keys keyed by kid. Replaced wholesale on refresh.
type snapshot struct {
	fetchedAt time.Time
	keys      map[string]any // *rsa.PublicKey | *ecdsa.PublicKey
}

func (s *snapshot) fresh(ttl time.Duration) bool {
	return s != nil && time.Since(s.fetchedAt) <= ttl
}

// JWKSCache holds one snapshot per issuer and refreshes it on a TTL or on
// a kid miss, coalescing concurrent refreshes for the same issuer into a
// single in-flight HTTP GET.
type JWKSCache struct {
	mu        sync.RWMutex
	snapshots map[string]*snapshot
	group     singleflight.Group
	client    *http.Client
	ttl       time.Duration
	// URLFor resolves the JWKS endpoint for an issuer. Defaults to
	// "<issuer>/.well-known/jwks.json".
	URLFor func(issuer string) string
}

// NewJWKSCache builds a cache with the spec-mandated 5s fetch timeout and
// 600s default TTL.
func NewJWKSCache() *JWKSCache {
	return &JWKSCache{
		snapshots: make(map[string]*snapshot),
		client:    &http.Client{Timeout: 5 * time.Second},
		ttl:       DefaultJWKSTTL,
		URLFor:    defaultJWKSURL,
	}
}

func defaultJWKSURL(issuer string) string {
	return trimSlash(issuer) + "/.well-known/jwks.json"
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// Get resolves a signing key by kid for the given issuer, fetching or
// refreshing the snapshot as needed. On a kid miss it forces exactly one
// refresh before failing KindKidUnknown (spec §4.1 step 2).
func (c *JWKSCache) Get(ctx context.Context, issuer, kid string) (any, error) {
	snap := c.current(issuer)

	if !snap.fresh(c.ttl) {
		if s, err := c.refresh(ctx, issuer, false); err == nil {
			snap = s
		} else if snap == nil {
			return nil, newError(KindIssuerUnknown, "jwks fetch failed", err)
		}
	}

	if key, ok := snap.keys[kid]; ok {
		return key, nil
	}

	refreshed, err := c.refresh(ctx, issuer, true)
	if err != nil {
		return nil, newError(KindIssuerUnknown, "jwks refresh failed", err)
	}
	if key, ok := refreshed.keys[kid]; ok {
		return key, nil
	}
	return nil, newError(KindKidUnknown, fmt.Sprintf("kid %q not found after refresh", kid), nil)
}

func (c *JWKSCache) current(issuer string) *snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshots[issuer]
}

// refresh performs (at most) one in-flight HTTP GET per issuer, replacing
// the snapshot atomically on success.
func (c *JWKSCache) refresh(ctx context.Context, issuer string, _forced bool) (*snapshot, error) {
	v, err, _ := c.group.Do(issuer, func() (any, error) {
		url := c.URLFor(issuer)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("jwks GET %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("jwks endpoint %s returned status %d", url, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read jwks response: %w", err)
		}

		var doc jwksResponse
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("parse jwks: %w", err)
		}

		keys := make(map[string]any, len(doc.Keys))
		for _, k := range doc.Keys {
			pub, err := decodeKey(k)
			if err != nil {
				log.Warn().Err(err).Str("kid", k.Kid).Msg("skipping undecodable jwk")
				continue
			}
			keys[k.Kid] = pub
		}

		snap := &snapshot{fetchedAt: time.Now(), keys: keys}

		c.mu.Lock()
		c.snapshots[issuer] = snap
		c.mu.Unlock()

		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

func decodeKey(k jwk) (any, error) {
	switch k.Kty {
	case "RSA":
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, fmt.Errorf("decode n: %w", err)
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, fmt.Errorf("decode e: %w", err)
		}
		var eInt int
		for _, b := range eBytes {
			eInt = eInt<<8 | int(b)
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: eInt}, nil
	case "EC":
		xBytes, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil {
			return nil, fmt.Errorf("decode x: %w", err)
		}
		yBytes, err := base64.RawURLEncoding.DecodeString(k.Y)
		if err != nil {
			return nil, fmt.Errorf("decode y: %w", err)
		}
		curve, err := curveFor(k.Crv)
		if err != nil {
			return nil, err
		}
		return &ecdsa.PublicKey{
			Curve: curve,
			X:     new(big.Int).SetBytes(xBytes),
			Y:     new(big.Int).SetBytes(yBytes),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported kty %q", k.Kty)
	}
}

func curveFor(crv string) (elliptic.Curve, error) {
	switch crv {
	case "P-256":
		return elliptic.P256(), nil
	case "P-384":
		return elliptic.P384(), nil
	case "P-521":
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("unsupported curve %q", crv)
	}
}
