package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ExchangeConfig configures the token-exchange client (C2).
type ExchangeConfig struct {
	Enabled      bool
	Endpoint     string
	ClientID     string
	ClientSecret string
	// Issuer/Audience used to verify the token returned by the exchange.
	Issuer   string
	Audience string
}

// ExchangeClient trades an external JWT for a trusted one at a
// provider-specific endpoint (spec §4.2), grounded on the original
// gateway's Descope jwt-bearer exchange call.
type ExchangeClient struct {
	cfg    ExchangeConfig
	client *http.Client
}

// NewExchangeClient builds an ExchangeClient with the default
// client-timeout bound required by spec §5.
func NewExchangeClient(cfg ExchangeConfig) *ExchangeClient {
	return &ExchangeClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
}

// Exchange performs the RFC 8693 jwt-bearer grant POST described in spec
// §6 and returns the trusted access token on 2xx.
func (c *ExchangeClient) Exchange(ctx context.Context, externalJWT, externalIssuer string) (string, error) {
	form := url.Values{
		"grant_type":    {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":     {externalJWT},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"issuer":        {externalIssuer},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", newError(KindExchangeFailed, "build exchange request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", newError(KindExchangeFailed, "exchange request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", newError(KindExchangeFailed, fmt.Sprintf("exchange endpoint returned %d: %s", resp.StatusCode, body), nil)
	}

	var out exchangeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", newError(KindExchangeFailed, "decode exchange response", err)
	}
	if out.AccessToken == "" {
		return "", newError(KindExchangeFailed, "exchange response missing access_token", nil)
	}

	log.Debug().Str("external_issuer", externalIssuer).Msg("token exchange succeeded")
	return out.AccessToken, nil
}
