package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// defaultRegions are tried in order when the input has no country prefix.
var defaultRegions = []string{
	"US",
	"GB",
	"DE",
	"FR",
	"IL",
}

// NormalizePhone converts a store contact phone to E.164, or returns ""
// when the input cannot be parsed as a valid number in any supported
// region. Validation rejects the empty result downstream.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}

	for _, region := range defaultRegions {
		parsed, err := phonenumbers.Parse(phone, region)
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(parsed) {
			return phonenumbers.Format(parsed, phonenumbers.E164)
		}
	}
	return ""
}
