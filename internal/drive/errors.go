package drive

import "fmt"

// AuthError indicates the stored credentials are invalid or could not be
// refreshed (revoked or expired refresh token). Fatal to a sync pass:
// re-running without new credentials cannot succeed.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// RemoteError is a failed remote store call. Transient errors (rate
// limits, server errors, network blips) and permanent ones (bad request,
// not found) are handled identically by the sync engine today: the item
// is logged and skipped. The flag is kept so callers can tell them apart.
type RemoteError struct {
	Op        string
	Status    int
	Transient bool
	Message   string
	Err       error
}

func (e *RemoteError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}

	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s remote error: %v", e.Op, kind, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s remote error (HTTP %d): %s", e.Op, kind, e.Status, e.Message)
	default:
		return fmt.Sprintf("%s: %s remote error (HTTP %d)", e.Op, kind, e.Status)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
