// Package parser turns Python source files into tree-sitter syntax trees.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

var (
	// ErrUnreadable is returned when a file cannot be read or decoded.
	ErrUnreadable = errors.New("file unreadable")
	// ErrSyntax is returned when the source does not parse cleanly.
	ErrSyntax = errors.New("syntax error")
)

// ParsedFile is a parsed Python file. Close releases the underlying tree.
type ParsedFile struct {
	Path   string
	Source []byte
	Lines  []string
	tree   *sitter.Tree
}

// Root returns the module node of the tree.
func (f *ParsedFile) Root() *sitter.Node {
	return f.tree.RootNode()
}

func (f *ParsedFile) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// Parser wraps a tree-sitter parser configured for Python. A Parser is not
// safe for concurrent use; create one per goroutine.
type Parser struct {
	parser      *sitter.Parser
	maxFileSize int64
}

// NewParser creates a parser. maxFileSizeKB <= 0 disables the size check.
func NewParser(maxFileSizeKB int) *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{
		parser:      p,
		maxFileSize: int64(maxFileSizeKB) * 1024,
	}
}

// ParseFile reads and parses path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*ParsedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	if p.maxFileSize > 0 && info.Size() > p.maxFileSize {
		return nil, fmt.Errorf("%w: %s: file is %d bytes, limit is %d", ErrUnreadable, path, info.Size(), p.maxFileSize)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	return p.ParseSource(ctx, path, StripBOM(source))
}

// ParseSource parses already-loaded source bytes. CRLF and bare CR line
// endings are converted to LF first, so Source and tree rows match Lines.
func (p *Parser) ParseSource(ctx context.Context, path string, source []byte) (*ParsedFile, error) {
	if !utf8.Valid(source) {
		return nil, fmt.Errorf("%w: %s: content is not valid UTF-8", ErrUnreadable, path)
	}
	source = NormalizeNewlines(source)

	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	root := tree.RootNode()
	if root == nil {
		tree.Close()
		return nil, fmt.Errorf("%w: %s: empty syntax tree", ErrSyntax, path)
	}
	if root.HasError() {
		line := firstErrorLine(root)
		tree.Close()
		return nil, fmt.Errorf("%w: %s: line %d", ErrSyntax, path, line)
	}

	return &ParsedFile{
		Path:   path,
		Source: source,
		Lines:  SplitLines(source),
		tree:   tree,
	}, nil
}

// NormalizeNewlines rewrites CRLF and bare CR line endings to LF.
func NormalizeNewlines(source []byte) []byte {
	if bytes.IndexByte(source, '\r') < 0 {
		return source
	}
	source = bytes.ReplaceAll(source, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(source, []byte("\r"), []byte("\n"))
}

// SplitLines splits source into lines without their terminators. A trailing
// newline does not produce an empty final line.
func SplitLines(source []byte) []string {
	text := string(NormalizeNewlines(source))
	if text == "" {
		return []string{}
	}
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

func firstErrorLine(n *sitter.Node) int {
	if n.Type() == "ERROR" || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.HasError() {
			return firstErrorLine(child)
		}
	}
	return int(n.StartPoint().Row) + 1
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// StripBOM removes a UTF-8 byte order mark.
func StripBOM(source []byte) []byte {
	return bytes.TrimPrefix(source, bom)
}
