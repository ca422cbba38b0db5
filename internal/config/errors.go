package config

import "errors"

var (
	// ErrMissingIssuer indicates OIDC_ISSUER was not set.
	ErrMissingIssuer = errors.New("OIDC_ISSUER is required")

	// ErrMissingAudience indicates OIDC_AUD was not set.
	ErrMissingAudience = errors.New("OIDC_AUD is required")

	// ErrMissingEngineURL indicates ENGINE_URL was not set.
	ErrMissingEngineURL = errors.New("ENGINE_URL is required")

	// ErrExchangeIncomplete indicates exchange was enabled without a full
	// client credential set.
	ErrExchangeIncomplete = errors.New("TOKEN_EXCHANGE_ENDPOINT, TOKEN_EXCHANGE_CLIENT_ID and TOKEN_EXCHANGE_CLIENT_SECRET are all required when token exchange is enabled")

	// ErrInvalidBackend indicates an unknown backend name was supplied for
	// a pluggable component, or a redis backend was selected without
	// REDIS_URL.
	ErrInvalidBackend = errors.New("invalid backend")
)
