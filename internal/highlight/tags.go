package highlight

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Library tags mark passages that came from stored strategic elements.
var LibraryTags = []string{"persona", "segment", "usecase_outcome", "usecase_blocker", "cta_leadmagnet"}

// PersonalizationTag marks runtime details such as inserted names.
const PersonalizationTag = "personalization"

var tagPattern = regexp.MustCompile(`(?i)<(/?)(persona|segment|usecase_outcome|usecase_blocker|cta_leadmagnet|personalization)>`)

// anyTagPattern matches every tag-looking token so unknown tags can be
// detected in model output.
var anyTagPattern = regexp.MustCompile(`</?([a-zA-Z_][a-zA-Z0-9_]*)>`)

// Strip removes every highlight tag and leaves the wrapped text in place.
func Strip(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

// HasHighlights reports whether s carries any highlight tag.
func HasHighlights(s string) bool {
	return tagPattern.MatchString(s)
}

// validate checks that annotated only adds balanced, known tags to base.
func validate(base, annotated string) error {
	var stack []string
	for _, m := range tagPattern.FindAllStringSubmatch(annotated, -1) {
		name := strings.ToLower(m[2])
		if m[1] == "" {
			stack = append(stack, name)
			continue
		}
		if len(stack) == 0 || stack[len(stack)-1] != name {
			return fmt.Errorf("unbalanced </%s>", name)
		}
		stack = stack[:len(stack)-1]
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed <%s>", stack[len(stack)-1])
	}

	// Tags that are not highlight tags must already be present in base, or
	// the model invented markup.
	for _, m := range anyTagPattern.FindAllStringSubmatch(annotated, -1) {
		if tagPattern.MatchString(m[0]) {
			continue
		}
		if !strings.Contains(base, m[0]) {
			return fmt.Errorf("unknown tag %s", m[0])
		}
	}

	if Strip(annotated) != base {
		return fmt.Errorf("annotated text does not strip back to the original")
	}
	return nil
}

// repairWhitespace restores leading and trailing whitespace the model
// trimmed, which is the most common harmless deviation.
func repairWhitespace(base, annotated string) string {
	trimmed := strings.TrimSpace(base)
	if Strip(strings.TrimSpace(annotated)) != trimmed {
		return annotated
	}
	start := strings.Index(base, trimmed)
	return base[:start] + strings.TrimSpace(annotated) + base[start+len(trimmed):]
}

var tagLabels = map[string]string{
	"persona":         "Persona",
	"segment":         "Segment",
	"usecase_outcome": "Use Case (Desired Outcome)",
	"usecase_blocker": "Use Case (Problem/Blocker)",
	"cta_leadmagnet":  "CTA (Lead Magnet)",
	"personalization": "Personalized",
}

// Render converts highlight tags to HTML spans. Everything else is escaped
// and newlines become <br/>.
func Render(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range tagPattern.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(escape(s[last:loc[0]]))
		closing := loc[3] > loc[2]
		name := strings.ToLower(s[loc[4]:loc[5]])
		if closing {
			b.WriteString("</span>")
		} else {
			fmt.Fprintf(&b, `<span class="highlight highlight-%s" title="%s">`, name, tagLabels[name])
		}
		last = loc[1]
	}
	b.WriteString(escape(s[last:]))
	return b.String()
}

func escape(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br/>")
}
