package term

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestIsTerminalRegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "notatty")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if IsTerminal(f) {
		t.Error("IsTerminal reported a regular file as a terminal")
	}
}

// fakeInfocmp installs a stand-in infocmp as the only binary on PATH. It
// echoes a recognizable payload for any term name except "vt-broken",
// which exits 3.
func fakeInfocmp(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	script := "#!/bin/sh\nif [ \"$1\" = \"vt-broken\" ]; then exit 3; fi\nprintf 'entry for %s' \"$1\"\n"
	if err := os.WriteFile(filepath.Join(dir, "infocmp"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir)
}

func TestLoadTerminfo(t *testing.T) {
	fakeInfocmp(t)

	spec, err := LoadTerminfo("xterm-ghost")
	if err != nil {
		t.Fatalf("LoadTerminfo: %v", err)
	}
	if spec.Term != "xterm-ghost" {
		t.Errorf("Term = %q, want %q", spec.Term, "xterm-ghost")
	}
	if got := string(spec.Data); got != "entry for xterm-ghost" {
		t.Errorf("Data = %q, want %q", got, "entry for xterm-ghost")
	}
}

func TestLoadTerminfoExitFailure(t *testing.T) {
	fakeInfocmp(t)

	_, err := LoadTerminfo("vt-broken")
	if err == nil {
		t.Fatal("LoadTerminfo succeeded for a failing infocmp")
	}
	if err.Error() != "infocmp failed (exit 3)" {
		t.Errorf("err = %q, want %q", err.Error(), "infocmp failed (exit 3)")
	}
}

func TestLoadTerminfoMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := LoadTerminfo("xterm")
	if err == nil {
		t.Fatal("LoadTerminfo succeeded without infocmp on PATH")
	}
	if !strings.HasPrefix(err.Error(), "failed to run infocmp:") {
		t.Errorf("err = %q, want prefix %q", err.Error(), "failed to run infocmp:")
	}
}
