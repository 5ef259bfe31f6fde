package routing

import (
	"fmt"
	"strings"

	"github.com/emiago/sipgo/sip"
)

// TargetKind classifies a dialed destination.
type TargetKind int

const (
	// TargetUnknown means the destination could not be classified.
	TargetUnknown TargetKind = iota
	// TargetTelephone is a PSTN number destination.
	TargetTelephone
	// TargetWeb is a registered web user destination.
	TargetWeb
)

// String returns the string representation of the kind.
func (k TargetKind) String() string {
	switch k {
	case TargetTelephone:
		return "Telephone"
	case TargetWeb:
		return "Web"
	default:
		return "Unknown"
	}
}

// Target is a classified destination. For telephone targets Number holds
// the dialable digit string with separators stripped. For web targets
// User and Domain hold the address-of-record parts.
type Target struct {
	Kind   TargetKind
	Raw    string
	Number string
	User   string
	Domain string
}

// Handle returns the canonical handle for presence lookups and events.
func (t Target) Handle() string {
	switch t.Kind {
	case TargetTelephone:
		return t.Number
	case TargetWeb:
		return t.User + "@" + t.Domain
	default:
		return t.Raw
	}
}

// Classify decides whether a dialed string addresses the telephone network
// or a web user. A leading + or an all-digit string (separators allowed)
// is a telephone number. A user@domain form is a web address. Anything
// else is rejected.
func Classify(dialed string) (Target, error) {
	s := strings.TrimSpace(dialed)
	if s == "" {
		return Target{}, fmt.Errorf("%w: empty destination", ErrInvalidCaller)
	}

	if isTelephone(s) {
		return Target{
			Kind:   TargetTelephone,
			Raw:    dialed,
			Number: normalizeNumber(s),
		}, nil
	}

	if strings.Contains(s, "@") {
		user, domain, err := parseWebAddress(s)
		if err != nil {
			return Target{}, err
		}
		return Target{
			Kind:   TargetWeb,
			Raw:    dialed,
			User:   user,
			Domain: domain,
		}, nil
	}

	return Target{}, fmt.Errorf("%w: unrecognized destination %q", ErrInvalidCaller, dialed)
}

// isTelephone reports whether s looks like a dialable number: an optional
// leading +, then digits with dashes, dots, spaces or parentheses as
// separators, and at least one digit.
func isTelephone(s string) bool {
	rest := strings.TrimPrefix(s, "+")
	digits := 0
	for _, r := range rest {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '-' || r == '.' || r == ' ' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits > 0
}

// normalizeNumber strips separators, keeping a leading + if present.
func normalizeNumber(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// parseWebAddress validates a user@domain form, accepting an optional
// sip: or sips: scheme prefix.
func parseWebAddress(s string) (user, domain string, err error) {
	uriText := s
	if !strings.HasPrefix(uriText, "sip:") && !strings.HasPrefix(uriText, "sips:") {
		uriText = "sip:" + uriText
	}

	var uri sip.Uri
	if err := sip.ParseUri(uriText, &uri); err != nil {
		return "", "", fmt.Errorf("%w: malformed address %q: %v", ErrInvalidCaller, s, err)
	}
	if uri.User == "" || uri.Host == "" {
		return "", "", fmt.Errorf("%w: address %q missing user or domain", ErrInvalidCaller, s)
	}
	return uri.User, strings.ToLower(uri.Host), nil
}
