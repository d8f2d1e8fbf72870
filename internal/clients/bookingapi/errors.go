package bookingapi

import "fmt"

// RemoteError is any non-2xx or transport-level failure from the backend.
// Message carries the server-provided text when one was decodable.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("booking API error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("booking API error %d", e.Status)
}

// AuthError means the 401 path was exhausted: the single refresh attempt
// failed or no refresh token was available. Stored credentials have already
// been cleared; the caller must re-authenticate.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "authentication required: " + e.Reason
}
