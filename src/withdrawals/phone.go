package withdrawals

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	phoneSeparators = regexp.MustCompile(`[\s\-()]`)
	phonePattern    = regexp.MustCompile(`^\+232\d{8}$`)
)

// NormalizePhone rewrites a Sierra Leone mobile number as +232XXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	p := phoneSeparators.ReplaceAllString(strings.TrimSpace(raw), "")
	switch {
	case strings.HasPrefix(p, "+"):
	case strings.HasPrefix(p, "232"):
		p = "+" + p
	default:
		p = "+232" + strings.TrimPrefix(p, "0")
	}
	if strings.HasPrefix(p, "+2320") && len(p) == 13 {
		p = "+232" + p[5:]
	}
	if !phonePattern.MatchString(p) {
		return "", fmt.Errorf("%w: expected +232 followed by 8 digits, got %q", ErrInvalidPhone, raw)
	}
	return p, nil
}
