package log

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// FileWriter appends debug records to dir/YYYY-MM-DD.jsonl and keeps a
// "latest" symlink pointing at the current file. The process serves a single
// launch, so the file is opened once; there is no mid-run rotation.
type FileWriter struct {
	file *os.File
}

// NewFileWriter opens today's log file under dir, creating dir as needed.
func NewFileWriter(dir string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating debug log dir: %w", err)
	}

	filename := time.Now().Format("2006-01-02") + ".jsonl"
	f, err := os.OpenFile(filepath.Join(dir, filename), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	updateSymlink(dir, filename)
	return &FileWriter{file: f}, nil
}

// Write implements io.Writer.
func (fw *FileWriter) Write(p []byte) (int, error) {
	return fw.file.Write(p)
}

// Close closes the underlying file.
func (fw *FileWriter) Close() error {
	return fw.file.Close()
}

// updateSymlink repoints dir/latest at target via a temp link and rename.
// Best effort.
func updateSymlink(dir, target string) {
	symlinkPath := filepath.Join(dir, "latest")
	tmpPath := symlinkPath + ".tmp"

	os.Remove(tmpPath)
	if err := os.Symlink(target, tmpPath); err != nil {
		return
	}
	_ = os.Rename(tmpPath, symlinkPath)
}

// datePattern matches YYYY-MM-DD.jsonl filenames.
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.jsonl$`)

// Cleanup removes log files older than retentionDays.
func Cleanup(dir string, retentionDays int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !datePattern.MatchString(name) {
			continue
		}
		fileDate, err := time.Parse("2006-01-02", name[:10])
		if err != nil {
			continue
		}
		if fileDate.Before(cutoff) {
			os.Remove(filepath.Join(dir, name))
		}
	}
}
