package worktree

import (
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/majorcontext/giftwrap/internal/protocol"
)

// ShareMount returns a bind mount for the repository's common git
// directory when it lives outside rootDir, as happens in linked worktrees
// and repos cloned with --separate-git-dir. Returns nil when rootDir is
// not a repository or the git dir already sits under it, since the build
// root mount covers that case.
func ShareMount(rootDir string) *protocol.Mount {
	cmd := exec.Command("git", "rev-parse", "--git-common-dir")
	cmd.Dir = rootDir
	out, err := cmd.Output()
	if err != nil {
		return nil
	}
	gitDir := strings.TrimSpace(string(out))
	if gitDir == "" {
		return nil
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(rootDir, gitDir)
	}
	if isWithin(gitDir, rootDir) {
		return nil
	}
	return &protocol.Mount{Source: gitDir, Target: gitDir}
}

// isWithin reports whether path is root or a descendant of it.
func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
