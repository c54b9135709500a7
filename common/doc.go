// Package common provides shared constants, sentinel errors, and logging
// used throughout TunnelGuard.
//
// It is the foundation for cross-cutting concerns:
//
//   - Constants: application-wide timeouts, file names, and identifiers
//   - Errors: sentinel errors for consistent error handling across packages
//   - Logger: leveled logging with rotating file output
//
// Check errors with errors.Is:
//
//	if errors.Is(err, common.ErrConfigInvalid) {
//	    // reject the tunnel configuration
//	}
package common
