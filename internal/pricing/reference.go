package pricing

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	genericEventWords = regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}-])(?:vente\s+de|souper|tombola)([^\p{L}\p{N}-]|$)`)
	fullYear          = regexp.MustCompile(`(^|[^\p{L}\p{N}])\d{2}(\d{2})([^\p{L}\p{N}]|$)`)
)

// GenerateOrderCode formats "{prefix}-{year}-{seq}" with seq zero-padded to
// five digits. Longer sequence numbers are kept whole.
func GenerateOrderCode(prefix string, year, sequence int) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, year, sequence)
}

// GeneratePaymentCommunication builds the memo customers put on their bank
// transfer, e.g. "Dupont Marie - Crémant 25". The first name token is read as
// the last name. The result is not unique.
func GeneratePaymentCommunication(customerFullName, eventName string) string {
	var name []string
	tokens := strings.Fields(customerFullName)
	if len(tokens) > 0 {
		name = append(name, tokens[0])
	}
	if len(tokens) > 1 {
		name = append(name, tokens[1])
	}

	event := replaceAllAnchored(genericEventWords, eventName, "${1} ${2}")
	event = replaceAllAnchored(fullYear, event, "${1}${2}${3}")
	event = strings.Join(strings.Fields(event), " ")

	who := strings.Join(name, " ")
	switch {
	case event == "":
		return who
	case who == "":
		return event
	default:
		return who + " - " + event
	}
}

// replaceAllAnchored repeats the replacement until it settles. The patterns
// consume their delimiters, so adjacent matches sharing one are missed by a
// single pass.
func replaceAllAnchored(re *regexp.Regexp, s, repl string) string {
	for {
		next := re.ReplaceAllString(s, repl)
		if next == s {
			return s
		}
		s = next
	}
}
