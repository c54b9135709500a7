package common

import "errors"

// Sentinel errors for tunnel operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Connection lifecycle errors.
	ErrAlreadyConnected = errors.New("connection attempt already in progress")
	ErrEngineStart      = errors.New("failed to start VPN engine")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrCertVerify       = errors.New("certificate verification failed")
	ErrTransport        = errors.New("transport error")
	ErrTimeout          = errors.New("connection timed out")
	ErrCancelled        = errors.New("operation cancelled")

	// Configuration errors.
	ErrConfigInvalid    = errors.New("invalid tunnel configuration")
	ErrConfigUnreadable = errors.New("cannot read tunnel configuration")

	// Security errors.
	ErrFirewallRule = errors.New("firewall rule operation failed")

	// Profile errors.
	ErrProfileNotFound = errors.New("profile not found")
	ErrDuplicateName   = errors.New("profile name already exists")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrCredentialStorage   = errors.New("failed to store credentials")
)

// WrapError wraps an error with additional context while keeping it
// matchable via errors.Is/As.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{msg: message, err: err}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
