package whatsapp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// ErrInvalidPhone is returned for numbers that do not parse or are not
// valid for their country.
var ErrInvalidPhone = errors.New("invalid phone number")

// Normalize returns raw in E.164 form ("+4915112345678").
//
// Webhook senders arrive as bare international digits, so a number without
// a leading "+", "00" or "0" is read as international. Anything else is
// parsed against region.
func Normalize(raw, region string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPhone)
	}
	if !strings.HasPrefix(s, "+") && !strings.HasPrefix(s, "0") {
		s = "+" + s
	}

	num, err := libphonenumber.Parse(s, strings.ToUpper(region))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidPhone, raw, err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}
