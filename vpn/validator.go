package vpn

import "strings"

// ValidationResult is the outcome of the structural acceptance check over
// raw tunnel configuration text.
type ValidationResult struct {
	IsValid      bool
	ErrorMessage string
	// Warnings are non-fatal security findings, in detection order.
	Warnings []string
}

// ValidateConfig performs the structural acceptance check. It is a pure
// function: deterministic, no I/O, safe to call concurrently.
//
// A config is rejected when it lacks a remote server directive, client
// mode, or any authentication material (certificate reference, inline
// certificate block, or username/password directive). Weak security
// settings produce warnings but do not fail validation.
func ValidateConfig(content string) ValidationResult {
	result := ValidationResult{IsValid: true}

	if !strings.Contains(content, "remote ") {
		result.IsValid = false
		result.ErrorMessage = "Configuration missing remote server specification"
		return result
	}

	if !strings.Contains(content, "client") {
		result.IsValid = false
		result.ErrorMessage = "Configuration not set for client mode"
		return result
	}

	hasAuth := strings.Contains(content, "cert ") ||
		strings.Contains(content, "<cert>") ||
		strings.Contains(content, "auth-user-pass")
	if !hasAuth {
		result.IsValid = false
		result.ErrorMessage = "Configuration missing authentication credentials"
		return result
	}

	if strings.Contains(content, "cipher none") {
		result.Warnings = append(result.Warnings, "Warning: No encryption cipher specified")
	}
	if strings.Contains(content, "auth none") {
		result.Warnings = append(result.Warnings, "Warning: No authentication algorithm specified")
	}
	if !strings.Contains(content, "verify-x509-name") {
		result.Warnings = append(result.Warnings, "Warning: X.509 name verification not enabled")
	}

	return result
}
