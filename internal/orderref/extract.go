// Package orderref finds the order reference a payer typed into a transfer
// description.
package orderref

import (
	"regexp"
	"strings"
)

const minFallbackLen = 8

var (
	// marker followed by whitespace and an optional ':' or '#'.
	markerRe = regexp.MustCompile(`(?i)(?:^|[^A-Z0-9])(?:ORDERID|ORDER|MA\s?DON|DH)\s*[:#]?\s+#?([A-Z0-9][A-Z0-9_-]*)`)
	prefixRe = regexp.MustCompile(`(?i)\b((?:ORD|DOC|CART)[A-Z0-9]*[0-9][A-Z0-9]*)\b`)
	runRe    = regexp.MustCompile(`[A-Za-z0-9]+`)
	digitRe  = regexp.MustCompile(`[0-9]`)
)

// Extract returns the order reference embedded in description, uppercased.
// Rules are tried in order: an explicit marker ("ORDER", "MA DON", "DH", ...),
// a structural ORD/DOC/CART prefix, then the longest alphanumeric run of at
// least eight characters that contains a digit.
func Extract(description string) (string, bool) {
	text := strings.TrimSpace(description)
	if text == "" {
		return "", false
	}

	// A marker token without a digit is prose ("order from ..."), not a reference.
	for _, m := range markerRe.FindAllStringSubmatch(text, -1) {
		if token := clean(m[1]); digitRe.MatchString(token) {
			return token, true
		}
	}
	if m := prefixRe.FindStringSubmatch(text); m != nil {
		return clean(m[1]), true
	}

	best := ""
	for _, run := range runRe.FindAllString(text, -1) {
		if len(run) < minFallbackLen || !digitRe.MatchString(run) {
			continue
		}
		if len(run) > len(best) {
			best = run
		}
	}
	if best != "" {
		return strings.ToUpper(best), true
	}
	return "", false
}

// Matches reports whether a transaction description refers to the order
// identified by orderID and paymentContent. extracted is the result of Extract
// and may be empty.
func Matches(orderID, paymentContent, description, extracted string) bool {
	if extracted != "" && strings.EqualFold(extracted, orderID) {
		return true
	}
	content := strings.TrimSpace(paymentContent)
	if content == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(description), strings.ToUpper(content))
}

func clean(token string) string {
	return strings.ToUpper(strings.Trim(token, "-_.,;:#"))
}
