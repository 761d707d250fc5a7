package domain

import "strings"

// ErrorKind is the closed set of auth failure classes. The backends hand back
// loosely shaped errors; they are translated into this union once, at the
// boundary, so nothing downstream inspects raw message strings.
type ErrorKind string

const (
	KindAlreadyExists      ErrorKind = "already_exists"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindLinkExpired        ErrorKind = "link_expired"
	KindLinkInvalid        ErrorKind = "link_invalid"
	KindNotFound           ErrorKind = "not_found"
	KindValidation         ErrorKind = "validation"
	KindTransport          ErrorKind = "transport"
	KindUnknown            ErrorKind = "unknown"
)

type AuthError struct {
	Kind    ErrorKind
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

func NewAuthError(kind ErrorKind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

// ClassifyExchangeError maps a link-exchange failure onto the taxonomy. The
// "expired" substring check is a heuristic inherited from the auth backend,
// which reports expiry only in prose; keep it here and nowhere else.
func ClassifyExchangeError(err error) *AuthError {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*AuthError); ok {
		return ae
	}
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "expired") {
		return &AuthError{Kind: KindLinkExpired, Message: msg}
	}
	return &AuthError{Kind: KindUnknown, Message: msg}
}

// KindOf returns the kind for any error, KindUnknown when it is not an
// AuthError.
func KindOf(err error) ErrorKind {
	if ae, ok := err.(*AuthError); ok {
		return ae.Kind
	}
	return KindUnknown
}
