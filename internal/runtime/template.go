package runtime

import (
	"regexp"
	"time"

	"github.com/aretw0/playbook/pkg/domain"
)

var placeholder = regexp.MustCompile(`\$\{(\w+)\}`)

// DateLayout is the format substituted for ${today}.
const DateLayout = "2006-01-02"

// RenderCommand substitutes ${name} placeholders in tmpl with context values.
// Absent or null keys leave the placeholder verbatim. ${today} falls back to the
// date of now when the context does not define it.
func RenderCommand(tmpl string, c domain.Context, now time.Time) string {
	if tmpl == "" {
		return ""
	}
	today := now.Format(DateLayout)
	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		if v, ok := c.Lookup(name); ok {
			return v.String()
		}
		if name == "today" {
			return today
		}
		return match
	})
}

// Placeholders lists the distinct variable names referenced by tmpl, in order of appearance.
func Placeholders(tmpl string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
