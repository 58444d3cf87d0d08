package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateProgramName validates a program or region name for safety.
// It rejects names that could be used for path traversal or injection.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path traversal sequences (.., //, etc.)
//   - No null bytes
//   - Maximum length of 256 characters
func ValidateProgramName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "name too long (max 256 characters)")
	}

	// Check for control characters and null bytes
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "name contains invalid control characters")
		}
	}

	// Check for path traversal patterns
	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidInput, "name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// nodeNameRegex matches valid manifest node, buffer and value names.
var nodeNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// ValidateNodeName validates a manifest entity name. Names must start with
// a letter or underscore and contain only letters, digits, underscores and
// dots.
func ValidateNodeName(name string) error {
	if err := ValidateProgramName(name); err != nil {
		return err
	}

	if !nodeNameRegex.MatchString(name) {
		return New(ErrCodeInvalidManifest, "invalid entity name: %q", name)
	}

	return nil
}
