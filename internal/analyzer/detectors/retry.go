package detectors

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"econlint/internal/models"
)

// retryBounds maps a retry decorator name to the keyword that limits it.
var retryBounds = map[string]string{
	"retry":          "stop",
	"tenacity.retry": "stop",
	"retrying.retry": "stop_max_attempt_number",
	"Retrying":       "stop_max_attempt_number",
}

// Any of these in the loop text is taken as evidence of a bound.
var counterPatterns = []string{
	"attempt", "retry", "tries", "count", "max_",
	"limit", "< ", "<= ", "> ", ">= ",
}

// RetryDetector flags retry decorators without a stop condition and
// hand-written "while True" retry loops without an attempt limit.
type RetryDetector struct {
	baseRule
}

func NewRetryDetector(filename string, source []byte, lines []string) *RetryDetector {
	d := &RetryDetector{
		baseRule: newBaseRule(models.CodeUnboundedRetry, "Unbounded retry pattern", filename, source, lines),
	}
	d.Handle(d.visitCall, KindCall)
	d.Handle(d.visitWhile, KindWhile)
	return d
}

func (d *RetryDetector) visitCall(n *sitter.Node) {
	name := d.callName(n)
	if bound, ok := retryBounds[name]; ok && !HasKeyword(n, bound, d.source) {
		if bound == "stop" {
			d.addWarning(n, name+"() without stop= parameter")
		} else {
			d.addWarning(n, name+"() without "+bound)
		}
	}
	d.WalkChildren(n)
}

func (d *RetryDetector) visitWhile(n *sitter.Node) {
	if isWhileTrue(n) && d.hasTryAndSleep(n) && !d.hasCounterCheck(n) {
		d.addWarning(n, "while True retry loop without attempt limit")
	}
	d.WalkChildren(n)
}

func isWhileTrue(n *sitter.Node) bool {
	cond := n.ChildByFieldName("condition")
	for cond != nil && NodeKind(cond.Type()) == KindParenthesized && cond.NamedChildCount() == 1 {
		cond = cond.NamedChild(0)
	}
	return cond != nil && NodeKind(cond.Type()) == KindTrue
}

// hasTryAndSleep looks anywhere under the loop for a try block and a call
// whose name mentions sleep.
func (d *RetryDetector) hasTryAndSleep(loop *sitter.Node) bool {
	hasTry, hasSleep := false, false
	var scan func(n *sitter.Node)
	scan = func(n *sitter.Node) {
		if n == nil || (hasTry && hasSleep) {
			return
		}
		switch NodeKind(n.Type()) {
		case KindTry:
			hasTry = true
		case KindCall:
			if strings.Contains(d.callName(n), "sleep") {
				hasSleep = true
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			scan(n.NamedChild(i))
		}
	}
	scan(loop)
	return hasTry && hasSleep
}

// hasCounterCheck is a plain text scan. Loop bounds are written too many
// ways to recognize structurally.
func (d *RetryDetector) hasCounterCheck(loop *sitter.Node) bool {
	text := strings.ToLower(NodeText(loop, d.source))
	for _, p := range counterPatterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
