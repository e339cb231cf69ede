// Package phone canonicalizes user-supplied phone numbers into the key used
// for all OTP state and user lookups.
package phone

import "strings"

var stripper = strings.NewReplacer(
	" ", "", "\t", "", "\n", "", "\r", "",
	"-", "", "(", "", ")", "", ".", "",
)

// Normalize strips whitespace, hyphens, parentheses and periods and ensures a
// leading "+". It does not validate digit count or country code; a failed SMS
// delivery is the validation signal.
func Normalize(raw string) string {
	cleaned := stripper.Replace(raw)
	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	return "+" + cleaned
}
