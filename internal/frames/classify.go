package frames

import "strings"

// Category buckets a per-video failure for the end-of-run summary. It
// drives reporting only, never control flow.
type Category string

const (
	CategoryAgeRestricted Category = "Age-restricted"
	CategoryUnavailable   Category = "Unavailable"
	CategoryBlocked       Category = "Blocked"
	CategoryOther         Category = "Other"
)

// classifyRules is the fixed, ordered rule list. Order matters: a reason
// matching several rules takes the first. Upstream wording is brittle, so
// all text matching is confined to this table. Reasons may embed raw
// downloader stderr, so the age rule needs a full verification phrase: a
// bare "age" would also match words like "webpage" in network errors.
var classifyRules = []struct {
	substrings []string
	category   Category
}{
	{[]string{"age restricted", "age-restricted", "confirm your age"}, CategoryAgeRestricted},
	{[]string{"unavailable", "private"}, CategoryUnavailable},
	{[]string{"blocked"}, CategoryBlocked},
}

// Classify maps a failure reason to its category. Matching is
// case-insensitive; unmatched reasons fall through to CategoryOther.
func Classify(reason string) Category {
	lowered := strings.ToLower(reason)
	for _, rule := range classifyRules {
		for _, sub := range rule.substrings {
			if strings.Contains(lowered, sub) {
				return rule.category
			}
		}
	}
	return CategoryOther
}
