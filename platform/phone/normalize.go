// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "ZA"

// NormalizeWaID formats a WhatsApp id (an E.164 number without the plus)
// into the canonical digit form the Cloud API expects. If parsing fails,
// it returns the trimmed input so delivery is still attempted.
func NormalizeWaID(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	candidate := trimmed
	if !strings.HasPrefix(candidate, "+") {
		candidate = "+" + candidate
	}

	number, err := phonenumbers.Parse(candidate, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return strings.TrimPrefix(phonenumbers.Format(number, phonenumbers.E164), "+")
}
