package ports

import "errors"

// ErrCredentials marks authentication failures: missing or invalid
// application credentials. Never retried.
var ErrCredentials = errors.New("invalid or missing credentials")

// TransientError wraps an error that is worth retrying (network blip,
// remote 5xx). Anything not wrapped this way is treated as fatal.
type TransientError struct {
	Err error
}

func (e TransientError) Error() string {
	return e.Err.Error()
}

func (e TransientError) Unwrap() error {
	return e.Err
}

// Transient marks err as retryable
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return TransientError{Err: err}
}

// IsTransient returns true if the error should be retried
func IsTransient(err error) bool {
	var transient TransientError
	return errors.As(err, &transient)
}
