package tools

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/modfin/henry/slicez"
)

// NormalizeEmail is the canonical form under which applicants are stored and
// looked up. Addresses are unique case-insensitively.
func NormalizeEmail(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func ValidEmail(address string) bool {
	if address == "" {
		return false
	}
	_, err := mail.ParseAddress(address)
	return err == nil
}

func DomainOfEmail(address string) (string, error) {
	parts := strings.Split(address, "@")
	if len(parts) < 2 {
		return "", errors.New("no domain was present in email address")
	}
	return slicez.Nth(parts, -1), nil
}
