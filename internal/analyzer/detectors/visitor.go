package detectors

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"econlint/internal/models"
)

// NodeKind is a tree-sitter Python node type.
type NodeKind string

const (
	KindCall            NodeKind = "call"
	KindFor             NodeKind = "for_statement"
	KindWhile           NodeKind = "while_statement"
	KindListComp        NodeKind = "list_comprehension"
	KindSetComp         NodeKind = "set_comprehension"
	KindDictComp        NodeKind = "dictionary_comprehension"
	KindGeneratorExpr   NodeKind = "generator_expression"
	KindForInClause     NodeKind = "for_in_clause"
	KindTry             NodeKind = "try_statement"
	KindIdentifier      NodeKind = "identifier"
	KindAttribute       NodeKind = "attribute"
	KindSubscript       NodeKind = "subscript"
	KindParenthesized   NodeKind = "parenthesized_expression"
	KindArgumentList    NodeKind = "argument_list"
	KindKeywordArgument NodeKind = "keyword_argument"
	KindListSplat       NodeKind = "list_splat"
	KindDictSplat       NodeKind = "dictionary_splat"
	KindPatternList     NodeKind = "pattern_list"
	KindTuplePattern    NodeKind = "tuple_pattern"
	KindListPattern     NodeKind = "list_pattern"
	KindLambda          NodeKind = "lambda"
	KindComment         NodeKind = "comment"
	KindTrue            NodeKind = "true"
)

// comprehensionKinds open a new loop scope just like a for statement.
var comprehensionKinds = []NodeKind{KindListComp, KindSetComp, KindDictComp, KindGeneratorExpr}

// Handler runs for a node of a registered kind. It must call WalkChildren
// itself if the traversal should continue below the node.
type Handler func(n *sitter.Node)

// Walker performs a depth-first pre-order traversal, dispatching registered
// node kinds to their handlers and descending into everything else.
type Walker struct {
	handlers map[NodeKind]Handler
}

func newWalker() *Walker {
	return &Walker{handlers: make(map[NodeKind]Handler)}
}

// Handle registers h for the given kinds.
func (w *Walker) Handle(h Handler, kinds ...NodeKind) {
	for _, k := range kinds {
		w.handlers[k] = h
	}
}

func (w *Walker) Walk(n *sitter.Node) {
	if n == nil {
		return
	}
	if h, ok := w.handlers[NodeKind(n.Type())]; ok {
		h(n)
		return
	}
	w.WalkChildren(n)
}

func (w *Walker) WalkChildren(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.Walk(n.NamedChild(i))
	}
}

// baseRule carries what every rule needs: the walker, the file being
// checked and the findings collected so far.
type baseRule struct {
	*Walker
	code     string
	message  string
	filename string
	source   []byte
	lines    []string
	warnings []models.Warning
}

func newBaseRule(code, message, filename string, source []byte, lines []string) baseRule {
	return baseRule{
		Walker:   newWalker(),
		code:     code,
		message:  message,
		filename: filename,
		source:   source,
		lines:    lines,
		warnings: make([]models.Warning, 0),
	}
}

func (b *baseRule) Code() string { return b.code }

func (b *baseRule) Name() string { return b.message }

// Detect walks the tree once and returns the findings.
func (b *baseRule) Detect(root *sitter.Node) []models.Warning {
	b.Walk(root)
	return b.warnings
}

func (b *baseRule) addWarning(n *sitter.Node, pattern string) {
	b.warnings = append(b.warnings, models.Warning{
		Code:        b.code,
		Message:     b.message,
		File:        b.filename,
		Line:        int(n.StartPoint().Row) + 1,
		Pattern:     pattern,
		Explanation: models.Explanation(b.code),
	})
}

func (b *baseRule) callName(call *sitter.Node) string {
	return DottedName(call.ChildByFieldName("function"), b.source)
}

// NodeText returns the source text spanned by n.
func NodeText(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(source)
}

// DottedName rebuilds a name like "client.users.get" from a call target.
// It returns "" when no name can be derived.
func DottedName(expr *sitter.Node, source []byte) string {
	if expr == nil {
		return ""
	}
	switch NodeKind(expr.Type()) {
	case KindIdentifier:
		return expr.Content(source)
	case KindAttribute:
		attr := NodeText(expr.ChildByFieldName("attribute"), source)
		if attr == "" {
			return ""
		}
		if base := DottedName(expr.ChildByFieldName("object"), source); base != "" {
			return base + "." + attr
		}
		return attr
	case KindCall:
		if base := DottedName(expr.ChildByFieldName("function"), source); base != "" {
			return base + "()"
		}
	case KindSubscript:
		if base := DottedName(expr.ChildByFieldName("value"), source); base != "" {
			return base + "[]"
		}
	case KindParenthesized:
		if expr.NamedChildCount() == 1 {
			return DottedName(expr.NamedChild(0), source)
		}
	}
	return ""
}

// arguments returns the argument nodes of call, skipping comments. A bare
// generator argument, as in f(x for x in xs), is returned as the only
// positional argument.
func arguments(call *sitter.Node) []*sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	if NodeKind(args.Type()) != KindArgumentList {
		return []*sitter.Node{args}
	}
	out := make([]*sitter.Node, 0, args.NamedChildCount())
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg == nil || NodeKind(arg.Type()) == KindComment {
			continue
		}
		out = append(out, arg)
	}
	return out
}

// PositionalArgs returns the non-keyword arguments of call, including
// *splat arguments.
func PositionalArgs(call *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, arg := range arguments(call) {
		switch NodeKind(arg.Type()) {
		case KindKeywordArgument, KindDictSplat:
			continue
		}
		out = append(out, arg)
	}
	return out
}

// KeywordArgs returns the keyword_argument nodes of call.
func KeywordArgs(call *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, arg := range arguments(call) {
		if NodeKind(arg.Type()) == KindKeywordArgument {
			out = append(out, arg)
		}
	}
	return out
}

// HasKeyword reports whether call passes a keyword argument called name.
func HasKeyword(call *sitter.Node, name string, source []byte) bool {
	for _, kw := range KeywordArgs(call) {
		if NodeText(kw.ChildByFieldName("name"), source) == name {
			return true
		}
	}
	return false
}

// HasSplatArg reports whether call unpacks a sequence with *args.
func HasSplatArg(call *sitter.Node) bool {
	for _, arg := range arguments(call) {
		if NodeKind(arg.Type()) == KindListSplat {
			return true
		}
	}
	return false
}

// lastSegment returns the part of a dotted name after the final dot.
func lastSegment(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// splitReceiver splits "a.b.c" into ("a.b", "c"). ok is false for names
// without a receiver.
func splitReceiver(name string) (receiver, method string, ok bool) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return "", name, false
	}
	return name[:i], name[i+1:], true
}
