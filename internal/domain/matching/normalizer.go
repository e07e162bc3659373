package matching

import (
	"strings"

	"github.com/storelink/backend/internal/domain/shared"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultRegion is the country prefix applied to local leading-zero numbers
// when no region is configured.
const DefaultRegion = "+66"

const (
	minSubscriberDigits = 8
	maxSubscriberDigits = 10
)

var nameFolder = cases.Fold()

// NormalizePhone canonicalizes a raw phone string into one deterministic
// international form, suitable for equality comparison:
//
//	"081-234-5678"  -> "+66812345678"
//	"+66812345678"  -> "+66812345678"
//	"0066812345678" -> "+66812345678"
//
// region is the prefix for local leading-zero numbers (e.g. "+66"); empty
// falls back to DefaultRegion. The function is pure: identical input always
// yields identical output. Strings that do not resolve to a plausible
// subscriber-number length return shared.ErrInvalidPhone.
func NormalizePhone(raw, region string) (string, error) {
	if region == "" {
		region = DefaultRegion
	}
	regionDigits := strings.TrimPrefix(region, "+")

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", shared.ErrInvalidPhone
	}

	plus := strings.HasPrefix(trimmed, "+")
	var digits strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.' || r == '+':
			// separator noise, dropped
		default:
			return "", shared.ErrInvalidPhone
		}
	}
	d := digits.String()

	var canonical string
	switch {
	case plus:
		canonical = "+" + d
	case strings.HasPrefix(d, "00"):
		canonical = "+" + d[2:]
	case strings.HasPrefix(d, "0"):
		canonical = "+" + regionDigits + d[1:]
	case strings.HasPrefix(d, regionDigits):
		canonical = "+" + d
	default:
		return "", shared.ErrInvalidPhone
	}

	var subscriber string
	switch {
	case strings.HasPrefix(canonical, "+"+regionDigits):
		subscriber = canonical[1+len(regionDigits):]
	case len(canonical) > 3:
		// Foreign region, assume a two-digit country code.
		subscriber = canonical[3:]
	default:
		return "", shared.ErrInvalidPhone
	}
	if len(subscriber) < minSubscriberDigits || len(subscriber) > maxSubscriberDigits {
		return "", shared.ErrInvalidPhone
	}

	return canonical, nil
}

// NormalizeName reduces a free-text name to a comparable token: NFKC
// normalization, case folding, and whitespace collapsing. No transliteration
// is attempted; the result is a secondary signal only and never sufficient
// for auto-acceptance on its own.
func NormalizeName(raw string) string {
	folded := nameFolder.String(norm.NFKC.String(raw))
	return strings.Join(strings.Fields(folded), " ")
}
