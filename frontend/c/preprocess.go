// This file is part of smdc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package c

import (
	"path"
	"strings"

	"github.com/pkg/errors"
)

// FileReader abstracts the search-path-based file lookup the driver
// configures. The frontend package itself never touches the
// filesystem directly.
type FileReader interface {
	ReadFile(searchPaths []string, requestingDir, path string, angled bool) (resolvedPath string, data []byte, err error)
}

// Preprocessor expands `#include` directives only; macros are not expanded.
// Cycles are rejected with a diagnostic rather than silently broken by a
// first-one-wins guard: a path already open on the current include chain
// is a hard error, not a skip.
type Preprocessor struct {
	Reader      FileReader
	SearchPaths []string

	stack []string // resolved paths currently being expanded, for cycle detection
}

// NewPreprocessor creates a Preprocessor using reader for #include lookups.
func NewPreprocessor(reader FileReader, searchPaths []string) *Preprocessor {
	return &Preprocessor{Reader: reader, SearchPaths: searchPaths}
}

// Expand recursively expands #include directives in src (whose own resolved
// path is selfPath, used as the starting directory for quoted includes) and
// returns the flattened text.
func (p *Preprocessor) Expand(selfPath string, src []byte) ([]byte, error) {
	for _, open := range p.stack {
		if open == selfPath {
			return nil, errors.Errorf("#include cycle detected: %s", includeChain(append(p.stack, selfPath)))
		}
	}
	p.stack = append(p.stack, selfPath)
	defer func() { p.stack = p.stack[:len(p.stack)-1] }()

	var out strings.Builder
	dir := path.Dir(selfPath)
	lines := strings.Split(string(src), "\n")
	for i, line := range lines {
		target, angled, ok := parseIncludeLine(line)
		if !ok {
			out.WriteString(line)
			if i != len(lines)-1 {
				out.WriteByte('\n')
			}
			continue
		}
		resolved, data, err := p.Reader.ReadFile(p.SearchPaths, dir, target, angled)
		if err != nil {
			return nil, errors.Wrapf(err, "#include %q", target)
		}
		expanded, err := p.Expand(resolved, data)
		if err != nil {
			return nil, err
		}
		out.Write(expanded)
		out.WriteByte('\n')
	}
	return []byte(out.String()), nil
}

func includeChain(stack []string) string {
	return strings.Join(stack, " -> ")
}

// parseIncludeLine recognizes `#include "path"` / `#include <path>`, allowing
// leading whitespace before the `#`; only the two canonical forms are
// recognized.
func parseIncludeLine(line string) (target string, angled bool, ok bool) {
	t := strings.TrimSpace(line)
	if !strings.HasPrefix(t, "#") {
		return "", false, false
	}
	t = strings.TrimSpace(t[1:])
	if !strings.HasPrefix(t, "include") {
		return "", false, false
	}
	t = strings.TrimSpace(t[len("include"):])
	if len(t) < 2 {
		return "", false, false
	}
	switch t[0] {
	case '"':
		end := strings.IndexByte(t[1:], '"')
		if end < 0 {
			return "", false, false
		}
		return t[1 : 1+end], false, true
	case '<':
		end := strings.IndexByte(t, '>')
		if end < 0 {
			return "", false, false
		}
		return t[1:end], true, true
	default:
		return "", false, false
	}
}
