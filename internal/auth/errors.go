package auth

import "errors"

// Kind classifies a verification failure as permanent (never worth
// retrying via token-exchange) or transient (the token might still be
// valid against a different issuer, so exchange is worth a try).
type Kind int

const (
	// KindUnknown is the zero value; never returned by Verify.
	KindUnknown Kind = iota
	KindMissingBearer
	KindAlgNotAllowed
	KindKidMissing
	KindMalformed
	KindExpired
	KindKidUnknown
	KindIssuerUnknown
	KindExchangeFailed
	KindUnauthenticated
)

// Error wraps a Kind with the underlying cause so callers can both
// pattern-match on the taxonomy and log the original detail.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Permanent reports whether the failure is definitive: the token is
// malformed, forged, or outside the accepted algorithm set, so a
// token-exchange retry would never help.
func (k Kind) Permanent() bool {
	switch k {
	case KindAlgNotAllowed, KindKidMissing, KindMalformed, KindExpired, KindMissingBearer:
		return true
	default:
		return false
	}
}

// Transient reports whether the failure might be resolved by trading the
// token for a trusted one at the exchange endpoint (unknown kid / issuer
// only — the token could belong to a different, federated issuer).
func (k Kind) Transient() bool {
	switch k {
	case KindKidUnknown, KindIssuerUnknown:
		return true
	default:
		return false
	}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, returning KindUnknown otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
