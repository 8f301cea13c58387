package intake

import (
	"fmt"
	"strings"
	"unicode"
)

// PhoneCheck is the result of validating a typed phone number.
type PhoneCheck struct {
	Valid      bool
	Normalized string
	Reason     string
}

// ValidatePhone strips every non-digit and accepts exactly 11 digits that
// start with 01. Arabic-Indic digits are read as their ASCII values.
func ValidatePhone(input string) PhoneCheck {
	var b strings.Builder
	for _, r := range normalizeDigits(input) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	check := PhoneCheck{Normalized: digits}

	switch {
	case len(digits) != 11:
		check.Reason = fmt.Sprintf("phone number must be exactly 11 digits, got %d", len(digits))
	case !strings.HasPrefix(digits, "01"):
		check.Reason = "phone number must start with 01"
	default:
		check.Valid = true
	}
	return check
}

const nationalIDLength = 14

// ExtractNationalID returns the first run of exactly 14 consecutive digits
// in text, or "" when there is none. Longer runs do not match.
func ExtractNationalID(text string) string {
	run := make([]rune, 0, nationalIDLength)
	flush := func() string {
		if len(run) == nationalIDLength {
			return string(run)
		}
		run = run[:0]
		return ""
	}
	for _, r := range normalizeDigits(text) {
		if r >= '0' && r <= '9' {
			run = append(run, r)
			continue
		}
		if id := flush(); id != "" {
			return id
		}
	}
	return flush()
}

// normalizeDigits maps Arabic-Indic and Extended Arabic-Indic digits to
// ASCII. Identity cards and phone keyboards in the field use both.
func normalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		}
		return r
	}, s)
}

// isCommand reports whether text is a bot command such as /cancel, with an
// optional @botname suffix.
func isCommand(text, name string) bool {
	t := strings.TrimSpace(text)
	if i := strings.IndexFunc(t, unicode.IsSpace); i >= 0 {
		t = t[:i]
	}
	if i := strings.IndexByte(t, '@'); i >= 0 {
		t = t[:i]
	}
	return strings.EqualFold(t, "/"+name)
}
