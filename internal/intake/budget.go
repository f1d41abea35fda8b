package intake

import (
	"regexp"
	"strings"
)

// budgetPattern accepts a whole or fractional amount after comma separators
// have been rewritten to periods.
var budgetPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// NormalizeBudget rewrites a comma decimal separator to a period and
// validates the result. Returns the normalized amount and whether the input
// was acceptable.
func NormalizeBudget(raw string) (string, bool) {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if !budgetPattern.MatchString(normalized) {
		return "", false
	}

	return normalized, true
}
