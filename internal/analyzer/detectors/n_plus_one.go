package detectors

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"econlint/internal/models"
)

var fetchMethodPattern = regexp.MustCompile(`(?i)^(get|fetch|load|query|find|select|read|retrieve|lookup)(_|$)`)

// Method tails that read local state rather than hit a remote service.
var safeAccessorPattern = regexp.MustCompile(`(?i)(path|priority|list|value|key|name|type|attr|slot|item|iter|match)s?$`)

// externalNamePatterns recognize names like user_repo, api_client,
// UserService or dbSession.
var externalNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(^|_)(api|client|service|repository|repo|dao|store|backend|remote|db|database)s?(_|$)`),
	regexp.MustCompile(`(Api|API|Client|Service|Repository|Repo|Dao|DAO|Store|Backend|Remote|Db|DB|Database)s?$`),
	regexp.MustCompile(`^(api|client|service|repository|repo|dao|store|backend|remote|db|database)[A-Z]`),
}

// Receivers that are almost always local objects or stdlib modules.
var safeReceivers = map[string]bool{
	"self": true, "cls": true, "data": true, "cache": true, "config": true,
	"settings": true, "os": true, "sys": true, "re": true, "json": true,
	"math": true, "random": true, "time": true, "datetime": true, "collections": true,
	"itertools": true, "functools": true, "logging": true, "pathlib": true, "path": true,
	"dict": true, "list": true, "set": true, "str": true, "obj": true,
	"item": true, "row": true, "record": true, "result": true, "results": true,
	"response": true, "args": true, "kwargs": true, "params": true, "headers": true,
	"env": true, "environ": true, "ctx": true, "context": true, "options": true,
	"opts": true, "meta": true, "attrs": true, "node": true, "parser": true,
}

// NPlusOneDetector flags fetch-style calls on a remote-looking receiver
// that take the current loop variable as an argument.
type NPlusOneDetector struct {
	baseRule
	loopVars []map[string]bool
}

func NewNPlusOneDetector(filename string, source []byte, lines []string) *NPlusOneDetector {
	d := &NPlusOneDetector{
		baseRule: newBaseRule(models.CodeNPlusOne, "N+1 query pattern", filename, source, lines),
	}
	d.Handle(d.visitFor, KindFor)
	d.Handle(d.visitComprehension, comprehensionKinds...)
	d.Handle(d.visitCall, KindCall)
	return d
}

func (d *NPlusOneDetector) visitFor(n *sitter.Node) {
	vars := make(map[string]bool)
	d.collectTargets(n.ChildByFieldName("left"), vars)
	d.loopVars = append(d.loopVars, vars)
	d.WalkChildren(n)
	d.loopVars = d.loopVars[:len(d.loopVars)-1]
}

// visitComprehension binds the targets of every for clause at once.
func (d *NPlusOneDetector) visitComprehension(n *sitter.Node) {
	vars := make(map[string]bool)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause != nil && NodeKind(clause.Type()) == KindForInClause {
			d.collectTargets(clause.ChildByFieldName("left"), vars)
		}
	}
	d.loopVars = append(d.loopVars, vars)
	d.WalkChildren(n)
	d.loopVars = d.loopVars[:len(d.loopVars)-1]
}

func (d *NPlusOneDetector) collectTargets(target *sitter.Node, into map[string]bool) {
	if target == nil {
		return
	}
	switch NodeKind(target.Type()) {
	case KindIdentifier:
		into[target.Content(d.source)] = true
	case KindPatternList, KindTuplePattern, KindListPattern:
		for i := 0; i < int(target.NamedChildCount()); i++ {
			d.collectTargets(target.NamedChild(i), into)
		}
	}
}

func (d *NPlusOneDetector) visitCall(n *sitter.Node) {
	if len(d.loopVars) > 0 {
		name := d.callName(n)
		if name != "" && fetchMethodPattern.MatchString(lastSegment(name)) &&
			d.usesLoopVar(n) && isLikelyExternalFetch(name) {
			d.addWarning(n, name+"() called with loop variable (N+1 pattern)")
		}
	}
	d.WalkChildren(n)
}

func (d *NPlusOneDetector) usesLoopVar(call *sitter.Node) bool {
	bound := make(map[string]bool)
	for _, frame := range d.loopVars {
		for name := range frame {
			bound[name] = true
		}
	}
	for _, arg := range PositionalArgs(call) {
		if d.referencesAny(arg, bound) {
			return true
		}
	}
	for _, kw := range KeywordArgs(call) {
		if d.referencesAny(kw.ChildByFieldName("value"), bound) {
			return true
		}
	}
	return false
}

// referencesAny reports whether a free identifier under n is in names.
// Attribute names, keyword names and lambda parameters are not references.
func (d *NPlusOneDetector) referencesAny(n *sitter.Node, names map[string]bool) bool {
	if n == nil {
		return false
	}
	switch NodeKind(n.Type()) {
	case KindIdentifier:
		return names[n.Content(d.source)]
	case KindAttribute:
		return d.referencesAny(n.ChildByFieldName("object"), names)
	case KindKeywordArgument:
		return d.referencesAny(n.ChildByFieldName("value"), names)
	case KindLambda:
		return d.referencesAny(n.ChildByFieldName("body"), names)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if d.referencesAny(n.NamedChild(i), names) {
			return true
		}
	}
	return false
}

// isLikelyExternalFetch is the second gate. get and find are common on
// plain local objects, so anything not clearly remote is rejected.
func isLikelyExternalFetch(name string) bool {
	receiver, method, ok := splitReceiver(name)
	if !ok {
		return matchesExternalName(name)
	}
	if safeAccessorPattern.MatchString(method) {
		return false
	}

	segments := receiverSegments(receiver)
	for _, seg := range segments {
		if safeReceivers[seg] {
			return false
		}
	}
	for _, seg := range segments {
		if matchesExternalName(seg) {
			return true
		}
	}
	return false
}

// receiverSegments splits "self.users_api()[]" into {"self", "users_api"}.
func receiverSegments(receiver string) []string {
	parts := strings.Split(receiver, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimRight(p, "()[]")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func matchesExternalName(name string) bool {
	for _, re := range externalNamePatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
