package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Two badge formats coexist: trainees carry "#YYXX", advanced staff the same
// number without the '#'. Everything that crosses the registry boundary goes
// through these normalizers.

// NormalizeTraineeBadge returns the badge in trainee format (with '#').
func NormalizeTraineeBadge(badge string) string {
	b := strings.TrimSpace(badge)
	if b == "" {
		return b
	}
	if !strings.HasPrefix(b, "#") {
		b = "#" + b
	}
	return b
}

// NormalizeAdvancedBadge returns the badge in advanced-staff format (no '#').
func NormalizeAdvancedBadge(badge string) string {
	return strings.TrimLeft(strings.TrimSpace(badge), "#")
}

var traineeBadgeRe = regexp.MustCompile(`^#\d{4}$`)

// ValidTraineeBadge reports whether badge matches the #YYXX format.
func ValidTraineeBadge(badge string) bool {
	return traineeBadgeRe.MatchString(badge)
}

// NextBadgeNumber suggests the next free badge for a cohort year given the
// already-assigned badges: "#YY01" when none exist for that year, otherwise
// the highest suffix plus one, zero-padded to two digits.
func NextBadgeNumber(year int, existing []string) string {
	prefix := fmt.Sprintf("#%02d", year%100)
	maxNum := 0
	found := false
	for _, badge := range existing {
		rest, ok := strings.CutPrefix(badge, prefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		found = true
		if n > maxNum {
			maxNum = n
		}
	}
	if !found {
		return prefix + "01"
	}
	return fmt.Sprintf("%s%02d", prefix, maxNum+1)
}

// scoreRe accepts plain decimal scores like "95", "95.5" or "100.00".
var scoreRe = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// ValidScoreFormat reports whether s is an acceptable score string.
func ValidScoreFormat(s string) bool {
	return scoreRe.MatchString(s)
}

// MaxNotesLen bounds every free-text field (notes, reasons, descriptions).
const MaxNotesLen = 10000
