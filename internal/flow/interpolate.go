// Package flow implements variable interpolation and condition evaluation
// over a per-user variable snapshot. Both operations are total: malformed
// input resolves to a defined fallback instead of an error.
package flow

import "regexp"

// Vars is the variable snapshot for one (bot, end-user) pair. Values are
// stored as text; the declared type only matters during comparisons.
type Vars map[string]string

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Interpolate replaces every {name} placeholder with the matching variable
// value. Placeholders with no matching variable are left verbatim.
func Interpolate(text string, vars Vars) string {
	if text == "" || len(vars) == 0 {
		return text
	}

	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}
