package validation

import (
	"regexp"
	"strings"
)

const (
	maxAccountLen  = 128
	maxLocationLen = 120
)

// Account ids are either ledger addresses or opaque ids from the buyer's wallet provider.
var accountRe = regexp.MustCompile(`^[A-Za-z0-9_.:@\-]+$`)

var hexAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Location: letters, digits, spaces and common place-name punctuation.
var locationRe = regexp.MustCompile(`^[\p{L}0-9\s,.'\-()/]+$`)

// IsValidAccount accepts a 0x address or an id without whitespace.
func IsValidAccount(account string) bool {
	if account == "" || len(account) > maxAccountLen {
		return false
	}
	if strings.HasPrefix(account, "0x") {
		return hexAddressRe.MatchString(account)
	}
	return accountRe.MatchString(account)
}

// IsValidLocation allows an empty location; listings without one simply never match a text filter.
func IsValidLocation(location string) bool {
	if location == "" {
		return true
	}
	return len(location) <= maxLocationLen && locationRe.MatchString(location)
}
