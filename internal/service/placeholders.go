package service

import (
	"regexp"
	"strings"
)

type placeholderRule struct {
	Name     string
	Patterns []string
}

var requiredPlaceholders = []placeholderRule{
	{"First Name", []string{"{{first_name}}", "{{firstName}}", "%first_name%"}},
	{"Company Name", []string{"{{company_name}}", "{{companyName}}", "%company_name%"}},
	{"Signature", []string{"%signature%", "{{signature}}"}},
}

var recommendedPlaceholders = []placeholderRule{
	{"Job Title", []string{"{{job_title}}", "{{jobTitle}}", "%job_title%"}},
	{"Time of Day (Smart Send)", []string{"{{sl_time_of_day}}", "%sl_time_of_day%"}},
}

var brokenPlaceholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(^|[^{])\{[a-z_]+\}($|[^}])`),
	regexp.MustCompile(`\[\[.*?\]\]`),
	regexp.MustCompile(`(?i)\[INSERT.*?\]`),
}

// PlaceholderReport describes merge tags in reviewed copy. It never blocks
// an approval; callers surface it as warnings.
type PlaceholderReport struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing,omitempty"`
	Warning []string `json:"warnings,omitempty"`
}

func CheckPlaceholders(content string) PlaceholderReport {
	var r PlaceholderReport
	for _, p := range requiredPlaceholders {
		if !containsAny(content, p.Patterns) {
			r.Missing = append(r.Missing, p.Name)
		}
	}
	for _, p := range recommendedPlaceholders {
		if !containsAny(content, p.Patterns) {
			r.Warning = append(r.Warning, "Consider adding "+p.Name+" personalization")
		}
	}
	for _, re := range brokenPlaceholderPatterns {
		if re.MatchString(content) {
			r.Warning = append(r.Warning, "Found potentially broken placeholders. Please verify formatting.")
			break
		}
	}
	r.Valid = len(r.Missing) == 0
	return r
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
