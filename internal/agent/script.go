package agent

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/majorcontext/giftwrap/internal/protocol"
)

// execFunc replaces the current process with the session shell.
// Defaults to unix.Exec. Tests override this to capture the exec call
// instead of actually replacing the process.
var execFunc = unix.Exec

// buildShellScript assembles the single command line handed to the
// session shell: secondary rc sourcing, prefix command, user command
// with captured exit code, environment dump, final exit.
func buildShellScript(spec *protocol.InternalSpec, agentPath string) string {
	var stmts []string

	if spec.ExtraShell != "" {
		stmts = append(stmts, "source "+shellEscape(spec.ExtraShell))
	}

	if len(spec.PrefixCmd) > 0 {
		stmts = append(stmts, commandGroup(spec.PrefixCmd)+" < /dev/null")
	} else if len(spec.PrefixCmdQuiet) > 0 {
		stmts = append(stmts, commandGroup(spec.PrefixCmdQuiet)+" < /dev/null > /dev/null 2>&1")
	}

	if len(spec.Command) > 0 {
		stmts = append(stmts, commandGroup(spec.Command), "drrc=$?")
	}

	if persist := spec.PersistEnv; persist != nil && persist.Save {
		stmts = append(stmts, shellEscape(agentPath)+" agent --dump-env "+shellEscape(persist.Path))
	}

	if len(spec.Command) > 0 {
		stmts = append(stmts, "exit $drrc")
	}

	return strings.Join(stmts, "; ")
}

// commandGroup renders argv as a compound statement with every token
// quoted, so arguments survive the shell round trip intact.
func commandGroup(argv []string) string {
	quoted := make([]string, len(argv))
	for i, tok := range argv {
		quoted[i] = shellEscape(tok)
	}
	return "{ " + strings.Join(quoted, " ") + "; }"
}

func shellEscape(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

// selectShell picks the session shell: the spec override when set, else
// bash when the image has it, else sh.
func selectShell(spec *protocol.InternalSpec) string {
	if spec.Shell != "" {
		return spec.Shell
	}
	if _, err := os.Stat("/bin/bash"); err == nil {
		return "/bin/bash"
	}
	return "/bin/sh"
}

// execShell replaces the process with shell -c script under exactly env.
// It only returns on failure.
func execShell(shell, script string, env map[string]string) error {
	path, err := exec.LookPath(shell)
	if err != nil {
		return fmt.Errorf("failed to exec shell: %v", err)
	}
	err = execFunc(path, []string{shell, "-c", script}, envList(env))
	return fmt.Errorf("failed to exec shell: %v", err)
}
