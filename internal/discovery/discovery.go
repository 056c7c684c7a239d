// Package discovery finds the Python files to analyze under a root path.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// ErrPathNotFound is returned when the root path does not exist.
var ErrPathNotFound = errors.New("path does not exist")

// Discover yields the .py files under root in lexical order. root may be a
// single file. A file is skipped when any exclude pattern matches its path
// relative to root, its base name, or any one of the segments below root.
// Folders above root never exclude anything. The sequence is lazy and can be
// ranged over more than once.
func Discover(root string, excludes []string) iter.Seq2[string, error] {
	m := NewMatcher(excludes)
	return func(yield func(string, error) bool) {
		info, err := os.Stat(root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = fmt.Errorf("%w: %s", ErrPathNotFound, root)
			}
			yield("", err)
			return
		}

		if !info.IsDir() {
			if IsPython(root) && !m.Excluded(filepath.Base(root)) {
				yield(root, nil)
			}
			return
		}

		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if !yield(path, err) {
					return filepath.SkipAll
				}
				return nil
			}
			if d.IsDir() {
				if path != root && m.ExcludedUnder(root, path) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !IsPython(path) || m.ExcludedUnder(root, path) {
				return nil
			}
			if !yield(path, nil) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// Collect drains Discover into a slice. Per-file walk errors are returned
// joined after the files that could be listed.
func Collect(root string, excludes []string) ([]string, error) {
	var files []string
	var errs []error
	for path, err := range Discover(root, excludes) {
		if err != nil {
			if errors.Is(err, ErrPathNotFound) {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}
		files = append(files, path)
	}
	return files, errors.Join(errs...)
}

// IsPython reports whether path names a Python source file.
func IsPython(path string) bool {
	return strings.HasSuffix(path, ".py")
}

// Matcher tests paths against exclusion patterns.
type Matcher struct {
	patterns []string
	once     sync.Once
	compiled []*regexp.Regexp
}

func NewMatcher(patterns []string) *Matcher {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return &Matcher{patterns: out}
}

// Excluded reports whether any pattern matches the full path, the base name
// or one of the path segments.
func (m *Matcher) Excluded(path string) bool {
	if len(m.patterns) == 0 {
		return false
	}
	m.once.Do(func() {
		for _, p := range m.patterns {
			m.compiled = append(m.compiled, globToRegexp(p))
		}
	})

	slashed := filepath.ToSlash(path)
	candidates := append([]string{slashed, filepath.Base(path)}, strings.Split(slashed, "/")...)
	for _, re := range m.compiled {
		for _, c := range candidates {
			if c != "" && re.MatchString(c) {
				return true
			}
		}
	}
	return false
}

// ExcludedUnder matches path relative to root. A path that is not below
// root is matched by its base name only.
func (m *Matcher) ExcludedUnder(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(path)
	}
	return m.Excluded(rel)
}

// globToRegexp translates a shell-style pattern. "*" and "?" also match
// "/", so "*/migrations/*" works against a full path.
func globToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + strings.ReplaceAll(class, `\`, `\\`) + "]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return regexp.MustCompile("^" + regexp.QuoteMeta(pattern) + "$")
	}
	return re
}
