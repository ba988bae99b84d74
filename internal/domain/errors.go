package domain

import "errors"

// ErrorKind classifies failures so clients branch on structure, never on
// message text.
type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication_failure"
	KindAuthorization  ErrorKind = "authorization_failure"
	KindNotJoined      ErrorKind = "not_joined_failure"
	KindTransient      ErrorKind = "transient_network_failure"
	KindValidation     ErrorKind = "validation_failure"
)

type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf extracts the classification from an error chain. Unclassified
// errors fall back to transient, the only kind safe to retry blindly.
func KindOf(err error) ErrorKind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindTransient
}

// Retryable reports whether a failure of this kind may be retried after
// user correction (authorization) or automatically (transient).
func (k ErrorKind) Retryable() bool {
	return k == KindAuthorization || k == KindTransient
}
