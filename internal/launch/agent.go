package launch

import (
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/majorcontext/giftwrap/internal/config"
	"github.com/majorcontext/giftwrap/internal/protocol"
)

// DefaultAgentTarget is the in-container path the agent binary is mounted
// at when the config does not pick one.
const DefaultAgentTarget = "/usr/local/bin/giftwrap"

// Overridden in tests to exercise the locator's fallback chain.
var (
	executablePath = os.Executable
	lookPath       = exec.LookPath
)

// locateAgent finds the giftwrap binary to mount into the container,
// trying in order: the gw_agent config override, the prebuilt-binary
// convention dist/giftwrap-linux-<arch> under the build root, the running
// executable, and finally the search path. The not-found error names every
// location checked.
func locateAgent(cfg *config.Config, rootTarget string) (protocol.Mount, error) {
	var tried []string

	if override, ok := cfg.First("gw_agent"); ok {
		source := override
		target := override
		if !filepath.IsAbs(override) {
			source = filepath.Join(cfg.RootDir, override)
			if canonical, err := filepath.EvalSymlinks(source); err == nil {
				source = canonical
			}
			target = path.Join(rootTarget, filepath.ToSlash(override))
		}
		if isExecutableFile(source) {
			return protocol.Mount{Source: source, Target: target, ReadOnly: true}, nil
		}
		tried = append(tried, source)
	}

	distDir := filepath.Join(cfg.RootDir, "dist")
	primary := filepath.Join(distDir, "giftwrap-linux-"+runtime.GOARCH)
	if isExecutableFile(primary) {
		return protocol.Mount{Source: primary, Target: DefaultAgentTarget, ReadOnly: true}, nil
	}
	tried = append(tried, primary)
	if candidates, err := filepath.Glob(filepath.Join(distDir, "giftwrap-linux-*")); err == nil {
		sort.Strings(candidates)
		for _, candidate := range candidates {
			if candidate == primary {
				continue
			}
			if isExecutableFile(candidate) {
				return protocol.Mount{Source: candidate, Target: DefaultAgentTarget, ReadOnly: true}, nil
			}
		}
	}

	if exe, err := executablePath(); err == nil {
		if canonical, err := filepath.EvalSymlinks(exe); err == nil {
			exe = canonical
		}
		if isExecutableFile(exe) {
			return protocol.Mount{Source: exe, Target: DefaultAgentTarget, ReadOnly: true}, nil
		}
		tried = append(tried, exe)
	} else {
		tried = append(tried, "the running executable")
	}

	if found, err := lookPath("giftwrap"); err == nil {
		return protocol.Mount{Source: found, Target: DefaultAgentTarget, ReadOnly: true}, nil
	}
	tried = append(tried, "giftwrap on PATH")

	return protocol.Mount{}, fmt.Errorf("agent binary not found; checked %s",
		strings.Join(tried, ", "))
}

func isExecutableFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
