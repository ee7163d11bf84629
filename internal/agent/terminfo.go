package agent

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/majorcontext/giftwrap/internal/protocol"
)

// installTerminfo writes the captured entry under the session home and
// compiles it with tic, which drops the result into $HOME/.terminfo. A
// failing tic only degrades terminal behavior, so its status is ignored.
func installTerminfo(info *protocol.TerminfoSpec, env map[string]string) error {
	home, ok := env["HOME"]
	if !ok {
		return fmt.Errorf("HOME is missing from environment")
	}

	terminfoDir := filepath.Join(home, ".terminfo")
	if err := os.MkdirAll(terminfoDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %v", terminfoDir, err)
	}

	sourceFile := filepath.Join(home, "terminfo")
	if err := os.WriteFile(sourceFile, info.Data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %v", sourceFile, err)
	}

	cmd := exec.Command("tic", sourceFile)
	cmd.Env = envList(env)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	_ = cmd.Run()

	return nil
}
