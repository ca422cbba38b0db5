package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/erauner12/attach-gateway/internal/auth"
	"github.com/erauner12/attach-gateway/internal/cache"
	"github.com/erauner12/attach-gateway/internal/proxy"
	"github.com/erauner12/attach-gateway/internal/quota"
	"github.com/erauner12/attach-gateway/internal/queue"
	"github.com/erauner12/attach-gateway/internal/tasks"
	"github.com/erauner12/attach-gateway/internal/usage"
)

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv
}

func jwksDoc(priv *rsa.PrivateKey, kid string) string {
	n := base64.RawURLEncoding.EncodeToString(priv.PublicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(priv.PublicKey.E)).Bytes())
	return fmt.Sprintf(`{"keys":[{"kid":%q,"kty":"RSA","use":"sig","n":%q,"e":%q}]}`, kid, n, e)
}

func signToken(t *testing.T, priv *rsa.PrivateKey, kid, issuer, audience, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": sub,
		"iss": issuer,
		"aud": audience,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})
	tok.Header["kid"] = kid
	s, err := tok.SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func newTestServer(t *testing.T, dispatcher http.Handler) (*Server, string) {
	t.Helper()
	priv := newRSAKey(t)
	const issuer = "https://issuer.example"
	const audience = "aud1"

	jwksSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, jwksDoc(priv, "k1"))
	}))
	t.Cleanup(jwksSrv.Close)

	jwks := auth.NewJWKSCache()
	jwks.URLFor = func(string) string { return jwksSrv.URL }
	verifier := auth.NewVerifier(auth.Config{Issuer: issuer, Audience: audience, Leeway: time.Minute}, jwks)

	registry := tasks.NewRegistry(time.Hour)
	srv := &Server{
		AuthConfig: auth.MiddlewareConfig{Verifier: verifier},
		Quota: QuotaConfig{
			Store:       quota.NewMemoryStore(time.Minute),
			Encoder:     byteEncoder{},
			LimitTokens: 1_000_000,
			Window:      time.Minute,
			Sink:        usage.NullSink{},
		},
		AllowedOrigins: []string{"*"},
		Dispatcher:     dispatcher,
		Tasks:          TaskHandlers{Registry: registry, Forwarder: tasks.NewForwarder(registry, time.Second)},
		MetricsReg:     prometheus.NewRegistry(),
		AuthDomain:     "example.auth0.com",
		AuthClientID:   "client-1",
		OIDCAudience:   audience,
	}

	token := signToken(t, priv, "k1", issuer, audience, "user-1")
	return srv, token
}

func TestRouter_CachedChatHappyPath(t *testing.T) {
	var engineCalled bool
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		engineCalled = true
		w.Write([]byte(`{"should":"not be used"}`))
	}))
	defer engine.Close()

	c := cache.NewMemoryStore()
	body := map[string]any{"model": "m", "messages": []any{map[string]any{"role": "user", "content": "hi"}}, "params": map[string]any{"t": 0.1}}
	key := cache.Key("m", body["messages"], body["params"])
	if err := c.Set(context.Background(), key, []byte(`{"answer":"ok"}`)); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	dispatcher := proxy.NewDispatcher(engine.URL, nil, c, queue.NewMemoryQueue(1), "memory")
	srv, token := newTestServer(t, dispatcher)

	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(string(raw)))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if engineCalled {
		t.Fatal("expected cache hit to skip the engine")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"answer":"ok"}` {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if rec.Header().Get("X-Attach-Session") == "" {
		t.Fatal("expected X-Attach-Session header to be set")
	}
}

func TestRouter_MissingBearerRejected(t *testing.T) {
	srv, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without auth")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouter_AuthConfigIsPublic(t *testing.T) {
	srv, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/auth/config", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "client-1") {
		t.Fatalf("expected client id in response, got %s", rec.Body.String())
	}
}
