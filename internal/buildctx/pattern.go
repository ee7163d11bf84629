package buildctx

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// errBadDockerignore is the single diagnostic for every legacy grammar
// violation. The legacy format is all-or-nothing: a literal "*" header and
// nothing but "!" re-includes after it.
const errBadDockerignore = "docker ignore must start with '*', each following line must start with '!'"

// gwPattern is one parsed line of a .gwinclude file. baseDir scopes the
// pattern to the subtree of the directory that defined it; candidates are
// matched against paths relative to that directory.
type gwPattern struct {
	baseDir  string
	include  bool
	dirOnly  bool
	anchored bool
	hasSlash bool
	raw      string
	tokens   []token
}

type dockerPattern struct {
	raw     string
	dirOnly bool
	tokens  []token
}

// parseGwincludeFiles parses every discovered .gwinclude file, shallowest
// directory first so that deeper files override ancestors under
// last-match-wins.
func parseGwincludeFiles(rootDir string, gwincludes []string) ([]gwPattern, error) {
	files := append([]string(nil), gwincludes...)
	sort.Slice(files, func(i, j int) bool {
		di, dj := pathDepth(parentDir(files[i])), pathDepth(parentDir(files[j]))
		if di != dj {
			return di < dj
		}
		return files[i] < files[j]
	})

	var patterns []gwPattern
	for _, rel := range files {
		abs := filepath.Join(rootDir, filepath.FromSlash(rel))
		content, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to read gwinclude file %s: %v", abs, err)
		}

		baseDir := parentDir(rel)
		for _, rawLine := range strings.Split(string(content), "\n") {
			line := strings.TrimSpace(rawLine)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			include := true
			if rest, ok := strings.CutPrefix(line, "!"); ok {
				include = false
				line = strings.TrimSpace(rest)
			}
			anchored := false
			if rest, ok := strings.CutPrefix(line, "/"); ok {
				anchored = true
				line = rest
			}
			dirOnly := strings.HasSuffix(line, "/")
			if dirOnly {
				line = strings.TrimRight(line, "/")
			}
			if line == "" {
				continue
			}
			patterns = append(patterns, gwPattern{
				baseDir:  baseDir,
				include:  include,
				dirOnly:  dirOnly,
				anchored: anchored,
				hasSlash: strings.Contains(line, "/"),
				raw:      line,
				tokens:   tokenize(line),
			})
		}
	}
	return patterns, nil
}

// parseDockerignore parses the legacy root marker: first line exactly "*",
// every following raw line a "!" pattern.
func parseDockerignore(path string) ([]dockerPattern, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dockerignore %s: %v", path, err)
	}
	lines := splitLines(string(content))
	if len(lines) == 0 || lines[0] != "*" {
		return nil, fmt.Errorf("%s", errBadDockerignore)
	}

	var patterns []dockerPattern
	for _, rawLine := range lines[1:] {
		rest, ok := strings.CutPrefix(rawLine, "!")
		if !ok {
			return nil, fmt.Errorf("%s", errBadDockerignore)
		}
		pat := strings.TrimSpace(rest)
		if pat == "" {
			return nil, fmt.Errorf("%s", errBadDockerignore)
		}
		pat = strings.TrimPrefix(pat, "/")
		dirOnly := strings.HasSuffix(pat, "/")
		if dirOnly {
			pat = strings.TrimRight(pat, "/")
		}
		if pat == "" {
			return nil, fmt.Errorf("%s", errBadDockerignore)
		}
		patterns = append(patterns, dockerPattern{
			raw:     pat,
			dirOnly: dirOnly,
			tokens:  tokenize(pat),
		})
	}
	return patterns, nil
}

// matches reports whether the pattern matches rel, a slash path relative to
// the pattern's base directory. Anchored patterns and patterns containing a
// separator match against the path (or, for dir-only, each directory
// prefix); bare patterns match against individual components.
func (p *gwPattern) matches(rel string) bool {
	components := splitComponents(rel)

	if p.dirOnly {
		if len(components) < 2 {
			return false
		}
		dirComponents := components[:len(components)-1]
		if p.anchored || p.hasSlash {
			for idx := 1; idx <= len(dirComponents); idx++ {
				if globMatch(p.tokens, strings.Join(dirComponents[:idx], "/")) {
					return true
				}
			}
			return false
		}
		for _, component := range dirComponents {
			if globMatch(p.tokens, component) {
				return true
			}
		}
		return false
	}

	if p.anchored || p.hasSlash {
		return globMatch(p.tokens, rel)
	}
	for _, component := range components {
		if globMatch(p.tokens, component) {
			return true
		}
	}
	return false
}

// dockerignoreIncludes reports whether any legacy pattern re-includes rel.
// Patterns are tried against every leading component prefix of the path;
// dir-only patterns against proper prefixes only.
func dockerignoreIncludes(rel string, patterns []dockerPattern) bool {
	if len(patterns) == 0 {
		return false
	}
	components := splitComponents(rel)
	var prefixes []string
	for idx := 1; idx <= len(components); idx++ {
		prefixes = append(prefixes, strings.Join(components[:idx], "/"))
	}
	dirPrefixes := prefixes[:len(prefixes)-1]

	for _, pattern := range patterns {
		candidates := prefixes
		if pattern.dirOnly {
			candidates = dirPrefixes
		}
		for _, candidate := range candidates {
			if globMatch(pattern.tokens, candidate) {
				return true
			}
		}
	}
	return false
}

func splitComponents(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// splitLines mirrors line iteration that yields no line for empty input and
// no phantom line after a trailing newline.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

func parentDir(rel string) string {
	idx := strings.LastIndex(rel, "/")
	if idx < 0 {
		return ""
	}
	return rel[:idx]
}

func pathDepth(dir string) int {
	if dir == "" {
		return 0
	}
	return strings.Count(dir, "/") + 1
}
