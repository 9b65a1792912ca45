// utils/validator.go - Input validation
package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	// Uploaded files must be named draft-<slug>-<NN>.<ext> with a two-digit
	// revision that matches across all provided renditions.
	draftFileRegex = regexp.MustCompile(`^(draft-[a-z0-9]+(?:-[a-z0-9]+)*)-(\d{2})$`)
)

// ValidateEmail checks if email is valid
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}

// ParseDraftFilename splits a filename base (no extension) into the logical
// draft name and two-digit revision.
func ParseDraftFilename(base string) (name, rev string, err error) {
	m := draftFileRegex.FindStringSubmatch(base)
	if m == nil {
		return "", "", fmt.Errorf("filename %q does not match draft-<name>-<NN>", base)
	}
	return m[1], m[2], nil
}

// NextRevision returns the two-digit revision following rev.
func NextRevision(rev string) (string, error) {
	if !regexp.MustCompile(`^\d{2}$`).MatchString(rev) {
		return "", fmt.Errorf("revision %q is not a two-digit string", rev)
	}
	n := int(rev[0]-'0')*10 + int(rev[1]-'0')
	if n >= 99 {
		return "", fmt.Errorf("revision %q cannot be incremented", rev)
	}
	return fmt.Sprintf("%02d", n+1), nil
}
