// Package suppression drops findings whose source line carries an inline
// directive:
//
//	x = fetch()  # econlint: ignore
//	x = fetch()  # econlint: ignore=ECON001
//	x = fetch()  # econlint: ignore=ECON001,ECON003
package suppression

import (
	"regexp"
	"strings"

	"econlint/internal/models"
)

var ignorePattern = regexp.MustCompile(`#\s*econlint:\s*ignore(?:=([A-Z0-9,]+))?\s*$`)

// Directive is the suppression state of one source line.
type Directive struct {
	// Present is false when the line has no directive.
	Present bool
	// Codes lists the suppressed codes. Empty means every code.
	Codes map[string]bool
}

// Suppresses reports whether the directive hides code.
func (d Directive) Suppresses(code string) bool {
	if !d.Present {
		return false
	}
	return len(d.Codes) == 0 || d.Codes[code]
}

// ParseDirective classifies a single line of source text.
func ParseDirective(line string) Directive {
	m := ignorePattern.FindStringSubmatch(line)
	if m == nil {
		return Directive{}
	}
	d := Directive{Present: true}
	if m[1] == "" {
		return d
	}
	d.Codes = make(map[string]bool)
	for _, code := range strings.Split(m[1], ",") {
		if code = strings.TrimSpace(code); code != "" {
			d.Codes[code] = true
		}
	}
	return d
}

// DirectiveAt returns the directive on the 1-based line of lines. Lines out
// of range have no directive.
func DirectiveAt(lines []string, line int) Directive {
	if line < 1 || line > len(lines) {
		return Directive{}
	}
	return ParseDirective(lines[line-1])
}

// Filter returns the warnings not suppressed by a directive on their line,
// plus the number dropped. A warning whose file is missing from sources is
// kept: a lookup miss must never hide a finding. Callers should make sure
// every analyzed file is in sources.
func Filter(warnings []models.Warning, sources map[string][]string) ([]models.Warning, int) {
	kept := make([]models.Warning, 0, len(warnings))
	dropped := 0
	for _, w := range warnings {
		lines, ok := sources[w.File]
		if ok && DirectiveAt(lines, w.Line).Suppresses(w.Code) {
			dropped++
			continue
		}
		kept = append(kept, w)
	}
	return kept, dropped
}

// Missing returns the distinct files referenced by warnings that have no
// entry in sources.
func Missing(warnings []models.Warning, sources map[string][]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range warnings {
		if _, ok := sources[w.File]; ok || seen[w.File] {
			continue
		}
		seen[w.File] = true
		out = append(out, w.File)
	}
	return out
}
