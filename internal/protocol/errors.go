package protocol

import "errors"

// Kind classifies an engine failure for programmatic handling. The host
// surface maps kinds to transport-level statuses; clients that need finer
// detail match on the reason string, which is a stable identifier.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindAlreadyExists   Kind = "already_exists"
	KindInvalidArgument Kind = "invalid_argument"
	KindNotAuthorized   Kind = "not_authorized"
	KindWrongState      Kind = "wrong_state"
	KindExpired         Kind = "expired"
	KindTransferFailed  Kind = "transfer_failed"
)

// Error is the failure type returned by every engine operation. Reason is a
// short lower-case identifier that never changes once shipped; callers may
// compare it case-insensitively.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return e.Reason }

// E builds a protocol error. Domain packages use it to declare their
// sentinel errors.
func E(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// KindOf extracts the protocol kind from err, unwrapping as needed.
// It returns "" when err carries no protocol error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err carries a protocol error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
