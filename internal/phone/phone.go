package phone

import "strings"

// minCustomerDigits is the shortest normalized string still treated as a
// real customer phone number. Anything shorter is an extension or noise.
const minCustomerDigits = 9

// maxPrefixTolerance bounds the length difference allowed when one number
// carries a country-code prefix the other lacks.
const maxPrefixTolerance = 4

// Normalize strips every non-digit and leading zeros from a phone string.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "0")
}

// LooksLikeCustomerNumber reports whether s plausibly identifies a customer
// rather than an internal extension.
func LooksLikeCustomerNumber(s string) bool {
	return len(Normalize(s)) >= minCustomerDigits
}

// SameCustomer decides whether two phone strings identify the same customer.
// After normalization they match exactly, or one is a suffix of the other
// with a length difference of 1-4 digits and the shorter one still at least
// 9 digits long (country-code-prefix tolerance).
func SameCustomer(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}

	longer, shorter := na, nb
	if len(nb) > len(na) {
		longer, shorter = nb, na
	}
	diff := len(longer) - len(shorter)
	if diff < 1 || diff > maxPrefixTolerance {
		return false
	}
	if len(shorter) < minCustomerDigits {
		return false
	}
	return strings.HasSuffix(longer, shorter)
}
