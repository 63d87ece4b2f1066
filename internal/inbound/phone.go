package inbound

import (
	"fmt"
	"regexp"
)

var e164USPattern = regexp.MustCompile(`^\+1\d{10}$`)

// ValidPhone reports whether phone matches the E.164 US format required
// of a Subscriber's phone number.
func ValidPhone(phone string) bool {
	return e164USPattern.MatchString(phone)
}

// FormatPhone renders a canonical +1XXXXXXXXXX number as "(XXX) XXX-XXXX".
// Callers must only pass validated phone numbers.
func FormatPhone(phone string) string {
	if !ValidPhone(phone) {
		return phone
	}
	digits := phone[2:]
	return fmt.Sprintf("(%s) %s-%s", digits[0:3], digits[3:6], digits[6:10])
}
