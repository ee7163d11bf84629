// Package engine drives the container engine CLI (podman by default) for
// image builds, existence checks, and the final exec into run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/majorcontext/giftwrap/internal/protocol"
)

// execFunc replaces the current process with the engine binary.
// Defaults to unix.Exec. Tests override this to capture the exec call
// instead of actually replacing the process.
var execFunc = unix.Exec

// Engine invokes a container engine binary as subprocesses. The run
// itself replaces the launcher process entirely, so stdio and signal
// handling stay with the engine.
type Engine struct {
	binary string
}

// New returns an Engine using the given binary name or path. An empty
// name selects podman.
func New(binary string) *Engine {
	if binary == "" {
		binary = "podman"
	}
	return &Engine{binary: binary}
}

// Binary returns the engine binary name.
func (e *Engine) Binary() string {
	return e.binary
}

// BuildImage builds image from contextDir, streaming engine output to the
// caller's stdio.
func (e *Engine) BuildImage(ctx context.Context, image, contextDir string) error {
	cmd := exec.CommandContext(ctx, e.binary, "build", "-t", image, contextDir)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("runtime build failed (exit %s)", exitStatus(exitErr))
		}
		return fmt.Errorf("failed to launch runtime build: %v", err)
	}
	return nil
}

// ImageExists reports whether image is present in local storage. Exit
// code 1 from the engine means absent; anything else nonzero is an error.
func (e *Engine) ImageExists(ctx context.Context, image string) (bool, error) {
	cmd := exec.CommandContext(ctx, e.binary, "image", "exists", image)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false, fmt.Errorf("failed to launch runtime image exists: %v", err)
	}
	if exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("runtime image exists failed (exit %s)", exitStatus(exitErr))
}

// RunArgs renders spec as engine run arguments. The order is stable so
// print mode output can be replayed verbatim.
func (e *Engine) RunArgs(spec *protocol.ContainerSpec) ([]string, error) {
	args := []string{"run"}

	if spec.Interactive {
		args = append(args, "-i")
	}
	if spec.TTY {
		args = append(args, "-t")
	}
	if spec.Remove {
		args = append(args, "--rm")
	}
	if spec.Init {
		args = append(args, "--init")
	}
	if spec.Privileged {
		args = append(args, "--privileged=true")
	}

	if spec.Hostname != "" {
		args = append(args, "-h", spec.Hostname)
	}
	for _, host := range spec.ExtraHosts {
		args = append(args, "--add-host", host)
	}
	for _, mount := range spec.Mounts {
		args = append(args, "-v", mountArg(mount))
	}

	keys := make([]string, 0, len(spec.Env))
	for key := range spec.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "--env", key+"="+spec.Env[key])
	}

	if spec.Workdir != "" {
		args = append(args, "-w", spec.Workdir)
	}
	if spec.User != "" {
		args = append(args, "-u", spec.User)
	}

	switch len(spec.Entrypoint) {
	case 0:
	case 1:
		args = append(args, "--entrypoint", spec.Entrypoint[0])
	default:
		return nil, fmt.Errorf("entrypoint must be a single argv element")
	}

	args = append(args, spec.ExtraArgs...)
	args = append(args, spec.Image)
	args = append(args, spec.Command...)

	return args, nil
}

// ExecRun replaces the current process with the engine run invocation.
// It only returns on failure.
func (e *Engine) ExecRun(spec *protocol.ContainerSpec) error {
	args, err := e.RunArgs(spec)
	if err != nil {
		return err
	}
	path, err := exec.LookPath(e.binary)
	if err != nil {
		return fmt.Errorf("failed to exec runtime run: %v", err)
	}
	argv := append([]string{e.binary}, args...)
	err = execFunc(path, argv, os.Environ())
	return fmt.Errorf("failed to exec runtime run: %v", err)
}

// mountArg renders source:target[:opt,...]. Empty options are dropped
// and ro is appended at most once for read-only mounts.
func mountArg(mount protocol.Mount) string {
	options := make([]string, 0, len(mount.Options)+1)
	hasRO := false
	for _, opt := range mount.Options {
		if opt == "" {
			continue
		}
		if opt == "ro" {
			hasRO = true
		}
		options = append(options, opt)
	}
	if mount.ReadOnly && !hasRO {
		options = append(options, "ro")
	}

	arg := mount.Source + ":" + mount.Target
	if len(options) > 0 {
		arg += ":" + strings.Join(options, ",")
	}
	return arg
}

func exitStatus(err *exec.ExitError) string {
	if code := err.ExitCode(); code >= 0 {
		return strconv.Itoa(code)
	}
	return "signal"
}
