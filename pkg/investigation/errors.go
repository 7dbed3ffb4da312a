package investigation

import "errors"

var (
	// ErrNotFound covers absent sessions, cases, investigations and orders.
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied is a non-owner, non-admin touching someone else's session.
	ErrAccessDenied = errors.New("access denied")
	// ErrConfiguration is an unparseable case configuration document. It is
	// surfaced rather than silently treated as an empty policy.
	ErrConfiguration = errors.New("invalid case configuration")
	// ErrStore wraps persistence failures. Writes are never auto-retried;
	// retrying a placement risks duplicate orders.
	ErrStore = errors.New("store error")
	// ErrDuplicateBatch is a replayed idempotency key.
	ErrDuplicateBatch = errors.New("duplicate order batch")
)
