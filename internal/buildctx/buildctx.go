// Package buildctx fingerprints a project's build context. A marker file at
// the project root selects the context definition grammar: .gwinclude
// (include-by-default-on-match, last match wins, subtree-scoped) or the
// legacy .dockerignore form (literal "*" header, "!" re-includes only). The
// selected files are hashed into one digest, cached in a sha file that is
// trusted while no selected file's mtime moves past it.
package buildctx

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Mode identifies which marker grammar defined the context.
type Mode int

const (
	ModeGwinclude Mode = iota
	ModeDockerignore
)

func (m Mode) String() string {
	if m == ModeDockerignore {
		return "dockerignore"
	}
	return "gwinclude"
}

// ErrNoMarker is returned when fingerprinting is requested but the root has
// neither marker file (or the config key is malformed).
var ErrNoMarker = errors.New("version_by_build_context requires a .gwinclude (or legacy .dockerignore) file")

// Fingerprint is the computed (or cache-validated) context digest along with
// the ordered file list it covers.
type Fingerprint struct {
	Digest  string
	Files   []string
	ShaFile string
	Mode    Mode
}

// FromConfig resolves the version_by_build_context parameter. A nil
// Fingerprint with nil error means fingerprinting is not configured.
func FromConfig(rootDir string, params map[string][]string) (*Fingerprint, error) {
	values, ok := params["version_by_build_context"]
	if !ok {
		return nil, nil
	}
	if len(values) != 1 {
		return nil, ErrNoMarker
	}
	return Build(rootDir, values[0])
}

// Build computes the fingerprint for rootDir, reusing the sha file at
// shaFile (joined to rootDir when relative) while it is still fresh.
func Build(rootDir, shaFile string) (*Fingerprint, error) {
	if !filepath.IsAbs(shaFile) {
		shaFile = filepath.Join(rootDir, shaFile)
	}
	mode, err := detectMode(rootDir)
	if err != nil {
		return nil, err
	}

	var files []string
	switch mode {
	case ModeGwinclude:
		files, err = gwincludeFileList(rootDir)
	case ModeDockerignore:
		files, err = dockerignoreFileList(rootDir)
	}
	if err != nil {
		return nil, err
	}

	dirty, err := isShaFileDirty(shaFile, files, rootDir)
	if err != nil {
		return nil, err
	}
	var digest string
	if dirty {
		digest, err = computeDigest(rootDir, files)
		if err != nil {
			return nil, err
		}
		if err := writeShaFile(shaFile, digest, files); err != nil {
			return nil, err
		}
	} else {
		digest, err = readShaFile(shaFile)
		if err != nil {
			return nil, err
		}
	}

	return &Fingerprint{Digest: digest, Files: files, ShaFile: shaFile, Mode: mode}, nil
}

func detectMode(rootDir string) (Mode, error) {
	if _, err := os.Stat(filepath.Join(rootDir, ".gwinclude")); err == nil {
		return ModeGwinclude, nil
	}
	if _, err := os.Stat(filepath.Join(rootDir, ".dockerignore")); err == nil {
		return ModeDockerignore, nil
	}
	return 0, ErrNoMarker
}

// gwincludeFileList walks the tree, applies every pattern in definition
// order, and returns the sorted deduplicated selection. Pattern files and a
// root Dockerfile are always part of the context.
func gwincludeFileList(rootDir string) ([]string, error) {
	files, gwincludes, err := collectFiles(rootDir)
	if err != nil {
		return nil, err
	}
	patterns, err := parseGwincludeFiles(rootDir, gwincludes)
	if err != nil {
		return nil, err
	}

	selected := make(map[string]struct{})
	for _, rel := range files {
		included := false
		for i := range patterns {
			pattern := &patterns[i]
			relToBase, ok := inSubtree(rel, pattern.baseDir)
			if !ok {
				continue
			}
			if pattern.matches(relToBase) {
				included = pattern.include
			}
		}
		if included {
			selected[rel] = struct{}{}
		}
	}

	if isRegular(filepath.Join(rootDir, "Dockerfile")) {
		selected["Dockerfile"] = struct{}{}
	}
	for _, gw := range gwincludes {
		selected[gw] = struct{}{}
	}
	return sortedKeys(selected), nil
}

func dockerignoreFileList(rootDir string) ([]string, error) {
	dockerignore := filepath.Join(rootDir, ".dockerignore")
	patterns, err := parseDockerignore(dockerignore)
	if err != nil {
		return nil, err
	}
	files, _, err := collectFiles(rootDir)
	if err != nil {
		return nil, err
	}

	selected := make(map[string]struct{})
	for _, rel := range files {
		if dockerignoreIncludes(rel, patterns) {
			selected[rel] = struct{}{}
		}
	}
	if isRegular(filepath.Join(rootDir, "Dockerfile")) {
		selected["Dockerfile"] = struct{}{}
	}
	if isRegular(dockerignore) {
		selected[".dockerignore"] = struct{}{}
	}
	return sortedKeys(selected), nil
}

// collectFiles returns every regular file and symlink under rootDir as
// root-relative slash paths, plus the subset whose base name is .gwinclude.
// Directories themselves are never candidates. Symlinks are recorded, not
// followed.
func collectFiles(rootDir string) (files, gwincludes []string, err error) {
	err = walkDir(rootDir, "", &files, &gwincludes)
	return files, gwincludes, err
}

func walkDir(rootDir, relDir string, files, gwincludes *[]string) error {
	dir := filepath.Join(rootDir, filepath.FromSlash(relDir))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %v", dir, err)
	}
	for _, entry := range entries {
		rel := entry.Name()
		if relDir != "" {
			rel = relDir + "/" + entry.Name()
		}
		switch {
		case entry.IsDir():
			if err := walkDir(rootDir, rel, files, gwincludes); err != nil {
				return err
			}
		case entry.Type().IsRegular() || entry.Type()&fs.ModeSymlink != 0:
			if entry.Name() == ".gwinclude" {
				*gwincludes = append(*gwincludes, rel)
			}
			*files = append(*files, rel)
		}
	}
	return nil
}

// inSubtree reports whether rel sits under baseDir and returns the remainder
// relative to it. The check is component-wise, so "subx/f" is not under
// "sub".
func inSubtree(rel, baseDir string) (string, bool) {
	if baseDir == "" {
		return rel, true
	}
	if rel == baseDir {
		return "", true
	}
	if rest, ok := strings.CutPrefix(rel, baseDir+"/"); ok {
		return rest, true
	}
	return "", false
}

// isShaFileDirty decides whether the cached digest can be reused. Any list
// drift or a selected file modified after the sha file forces a recompute; a
// sha file that exists but cannot be read or statted is an error, not a
// recompute.
func isShaFileDirty(shaFile string, fileList []string, rootDir string) (bool, error) {
	content, err := os.ReadFile(shaFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("failed to read sha file %s: %v", shaFile, err)
	}
	lines := splitLines(string(content))
	if len(lines) == 0 {
		return true, nil
	}
	stored := lines[1:]
	if len(stored) != len(fileList) {
		return true, nil
	}
	for i, line := range stored {
		if strings.TrimSpace(line) != fileList[i] {
			return true, nil
		}
	}

	info, err := os.Stat(shaFile)
	if err != nil {
		return false, fmt.Errorf("failed to stat sha file %s: %v", shaFile, err)
	}
	shaMtime := info.ModTime()

	for _, rel := range fileList {
		meta, err := os.Stat(filepath.Join(rootDir, filepath.FromSlash(rel)))
		if err != nil {
			return true, nil
		}
		if meta.ModTime().After(shaMtime) {
			return true, nil
		}
	}
	return false, nil
}

// computeDigest hashes the listed files' contents, concatenated in list
// order. Entries that are no longer regular files are skipped.
func computeDigest(rootDir string, fileList []string) (string, error) {
	hasher := sha256.New()
	buf := make([]byte, 1<<20)
	for _, rel := range fileList {
		path := filepath.Join(rootDir, filepath.FromSlash(rel))
		if !isRegular(path) {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to read file %s: %v", path, err)
		}
		_, err = io.CopyBuffer(hasher, f, buf)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("failed to read file %s: %v", path, err)
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func writeShaFile(shaFile, digest string, fileList []string) error {
	var out strings.Builder
	out.WriteString(digest)
	out.WriteByte('\n')
	if len(fileList) > 0 {
		out.WriteString(strings.Join(fileList, "\n"))
	}
	if err := os.WriteFile(shaFile, []byte(out.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write sha file %s: %v", shaFile, err)
	}
	return nil
}

func readShaFile(shaFile string) (string, error) {
	content, err := os.ReadFile(shaFile)
	if err != nil {
		return "", fmt.Errorf("failed to read sha file %s: %v", shaFile, err)
	}
	lines := splitLines(string(content))
	if len(lines) == 0 {
		return "", fmt.Errorf("sha file %s is empty", shaFile)
	}
	return strings.TrimSpace(lines[0]), nil
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
