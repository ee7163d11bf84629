// Package term inspects the calling terminal: tty detection for stdio
// streams and capture of the host terminfo entry so it can be replayed
// inside the container.
package term

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"golang.org/x/term"

	"github.com/majorcontext/giftwrap/internal/protocol"
)

// IsTerminal returns true if the file is a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// LoadTerminfo captures the compiled-source form of the named terminal
// entry via infocmp. The agent feeds the data to tic when the image lacks
// the entry.
func LoadTerminfo(termName string) (*protocol.TerminfoSpec, error) {
	out, err := exec.Command("infocmp", termName).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("infocmp failed (exit %s)", exitStatus(exitErr))
		}
		return nil, fmt.Errorf("failed to run infocmp: %v", err)
	}
	return &protocol.TerminfoSpec{Term: termName, Data: out}, nil
}

func exitStatus(err *exec.ExitError) string {
	if code := err.ExitCode(); code >= 0 {
		return strconv.Itoa(code)
	}
	return "signal"
}
