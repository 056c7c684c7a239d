package detectors

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"econlint/internal/models"
)

// Rule checks one parsed file. Instances hold per-file traversal state and
// must not be reused across files.
type Rule interface {
	Code() string
	Name() string
	Detect(root *sitter.Node) []models.Warning
}

// Factory builds a fresh rule for one file.
type Factory func(filename string, source []byte, lines []string) Rule

// Spec describes a registered rule.
type Spec struct {
	Code string
	Name string
	New  Factory
}

var registry = []Spec{
	{
		Code: models.CodeExternalCallInLoop,
		Name: "External call inside loop",
		New: func(f string, src []byte, lines []string) Rule {
			return NewExternalCallDetector(f, src, lines)
		},
	},
	{
		Code: models.CodeUnboundedRetry,
		Name: "Unbounded retry pattern",
		New: func(f string, src []byte, lines []string) Rule {
			return NewRetryDetector(f, src, lines)
		},
	},
	{
		Code: models.CodeNPlusOne,
		Name: "N+1 query pattern",
		New: func(f string, src []byte, lines []string) Rule {
			return NewNPlusOneDetector(f, src, lines)
		},
	},
	{
		Code: models.CodeUnboundedFanOut,
		Name: "Unbounded fan-out",
		New: func(f string, src []byte, lines []string) Rule {
			return NewFanOutDetector(f, src, lines)
		},
	},
}

// All returns every rule in code order.
func All() []Spec {
	out := make([]Spec, len(registry))
	copy(out, registry)
	return out
}

// Enabled returns the rules whose codes are not in disabled. Codes are
// compared case-insensitively.
func Enabled(disabled []string) []Spec {
	off := make(map[string]bool, len(disabled))
	for _, code := range disabled {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			off[code] = true
		}
	}
	out := make([]Spec, 0, len(registry))
	for _, s := range registry {
		if !off[s.Code] {
			out = append(out, s)
		}
	}
	return out
}

// Lookup returns the rule registered under code.
func Lookup(code string) (Spec, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, s := range registry {
		if s.Code == code {
			return s, true
		}
	}
	return Spec{}, false
}
