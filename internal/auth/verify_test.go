package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func startJWKSServer(t *testing.T, kp keypair) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"keys":[%s]}`, jwkFor(kp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signRS256(t *testing.T, kp keypair, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kp.kid
	s, err := tok.SignedString(kp.priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func newTestVerifier(t *testing.T, srv *httptest.Server, issuer, audience string) *Verifier {
	cache := NewJWKSCache()
	cache.URLFor = func(string) string { return srv.URL }
	return NewVerifier(Config{Issuer: issuer, Audience: audience, Leeway: time.Minute}, cache)
}

func TestVerify_HappyPath(t *testing.T) {
	kp := newKeypair(t, "k1")
	srv := startJWKSServer(t, kp)
	v := newTestVerifier(t, srv, "https://issuer.example", "aud1")

	claims := jwt.MapClaims{
		"sub": "user-1",
		"iss": "https://issuer.example",
		"aud": "aud1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	token := signRS256(t, kp, claims)

	out, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if out.Subject != "user-1" {
		t.Fatalf("expected sub=user-1, got %s", out.Subject)
	}
}

func TestVerify_AlgNotAllowed_NoJWKSFetch(t *testing.T) {
	var fetched bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetched = true
		w.Write([]byte(`{"keys":[]}`))
	}))
	defer srv.Close()

	v := newTestVerifier(t, srv, "https://issuer.example", "aud1")

	secret := []byte("shared-secret")
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1", "iss": "https://issuer.example", "aud": "aud1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = v.Verify(context.Background(), signed)
	if KindOf(err) != KindAlgNotAllowed {
		t.Fatalf("expected KindAlgNotAllowed, got %v (%v)", KindOf(err), err)
	}
	if fetched {
		t.Fatal("JWKS must not be fetched when alg is rejected before key resolution")
	}
}

func TestVerify_KidMissing(t *testing.T) {
	kp := newKeypair(t, "k1")
	srv := startJWKSServer(t, kp)
	v := newTestVerifier(t, srv, "https://issuer.example", "aud1")

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix(),
	})
	// deliberately omit kid header
	signed, err := tok.SignedString(kp.priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = v.Verify(context.Background(), signed)
	if KindOf(err) != KindKidMissing {
		t.Fatalf("expected KindKidMissing, got %v (%v)", KindOf(err), err)
	}
}

func TestVerify_Expired(t *testing.T) {
	kp := newKeypair(t, "k1")
	srv := startJWKSServer(t, kp)
	v := newTestVerifier(t, srv, "https://issuer.example", "aud1")

	claims := jwt.MapClaims{
		"sub": "user-1",
		"iss": "https://issuer.example",
		"aud": "aud1",
		"exp": time.Now().Add(-time.Hour).Unix(),
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
	}
	token := signRS256(t, kp, claims)

	_, err := v.Verify(context.Background(), token)
	if KindOf(err) != KindExpired {
		t.Fatalf("expected KindExpired, got %v (%v)", KindOf(err), err)
	}
}

func TestVerify_WithinLeewayAccepted(t *testing.T) {
	kp := newKeypair(t, "k1")
	srv := startJWKSServer(t, kp)
	v := newTestVerifier(t, srv, "https://issuer.example", "aud1")

	claims := jwt.MapClaims{
		"sub": "user-1",
		"iss": "https://issuer.example",
		"aud": "aud1",
		"exp": time.Now().Add(-30 * time.Second).Unix(),
		"iat": time.Now().Unix(),
	}
	token := signRS256(t, kp, claims)

	if _, err := v.Verify(context.Background(), token); err != nil {
		t.Fatalf("expected token within leeway to be accepted, got %v", err)
	}
}
