// Package agent provisions the container at startup: it synthesizes the
// caller's account inside the image, assembles the session environment,
// drops privileges, and replaces itself with the user's shell.
//
// The launcher mounts the giftwrap binary into the container and runs it
// with argv ["agent"]; everything the agent needs arrives serialized in
// the GW_INTERNAL_SPEC environment variable.
package agent

import (
	"fmt"
	"os"
	"strings"

	"github.com/majorcontext/giftwrap/internal/envsnap"
	"github.com/majorcontext/giftwrap/internal/log"
	"github.com/majorcontext/giftwrap/internal/protocol"
)

// Run dispatches the agent entry point. args are the arguments after the
// agent subcommand itself.
func Run(args []string) error {
	if len(args) > 0 {
		flag := args[0]
		if path, ok := strings.CutPrefix(flag, "--dump-env="); ok {
			return envsnap.Save(path)
		}
		if flag == "--dump-env" {
			if len(args) < 2 {
				return fmt.Errorf("--dump-env requires a path")
			}
			if len(args) > 2 {
				return fmt.Errorf("--dump-env accepts a single path")
			}
			return envsnap.Save(args[1])
		}
		if os.Getenv(protocol.SpecEnv) == "" {
			return fmt.Errorf("unknown argument: %s", flag)
		}
	}

	spec, err := loadSpec()
	if err != nil {
		return err
	}
	if spec.ProtocolVersion != protocol.Version {
		return fmt.Errorf("internal spec version mismatch (expected %d, got %d)",
			protocol.Version, spec.ProtocolVersion)
	}
	return runSpec(spec)
}

func loadSpec() (*protocol.InternalSpec, error) {
	raw := os.Getenv(protocol.SpecEnv)
	if raw == "" {
		return nil, fmt.Errorf("missing %s environment variable", protocol.SpecEnv)
	}
	return protocol.Decode(raw)
}

func runSpec(spec *protocol.InternalSpec) error {
	if err := os.Chdir(spec.Workdir); err != nil {
		return fmt.Errorf("failed to enter workdir %s: %v", spec.Workdir, err)
	}
	log.Debug("provisioning container session",
		"user", spec.User.Name, "uid", spec.User.UID, "workdir", spec.Workdir)

	if err := setupUser(&spec.User); err != nil {
		return err
	}

	env := baseEnv(spec)
	for key, value := range spec.EnvOverrides {
		env[key] = value
	}
	env["HOME"] = spec.User.Home
	delete(env, protocol.SpecEnv)

	if err := dropPrivileges(spec.User.UID, spec.User.GID); err != nil {
		return err
	}

	if spec.Terminfo != nil {
		if err := installTerminfo(spec.Terminfo, env); err != nil {
			return err
		}
	}

	script := buildShellScript(spec, agentPath())
	shell := selectShell(spec)
	return execShell(shell, script, env)
}

// agentPath is the in-container path re-invoked for --dump-env.
func agentPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "giftwrap"
	}
	return exe
}
