package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/majorcontext/giftwrap/internal/protocol"
)

func baseSpec() *protocol.ContainerSpec {
	return &protocol.ContainerSpec{Image: "example:latest"}
}

func TestRunArgsOrdersFlagsAndValues(t *testing.T) {
	spec := baseSpec()
	spec.Image = "registry/app:tag"
	spec.Interactive = true
	spec.TTY = true
	spec.Remove = true
	spec.Init = true
	spec.Privileged = true
	spec.Hostname = "gw-host"
	spec.ExtraHosts = []string{"host.docker.internal:host-gateway", "db:10.0.0.2"}
	spec.Mounts = []protocol.Mount{
		{Source: "/src", Target: "/workspace", Options: []string{"z"}},
		{Source: "/data", Target: "/data", ReadOnly: true, Options: []string{"Z"}},
	}
	spec.Env = map[string]string{"B": "2", "A": "1"}
	spec.Workdir = "/work"
	spec.User = "1000:1000"
	spec.Entrypoint = []string{"/bin/sh"}
	spec.ExtraArgs = []string{"--security-opt=label=disable", "--pids-limit=100"}
	spec.Command = []string{"bash", "-lc", "true"}

	args, err := New("").RunArgs(spec)
	if err != nil {
		t.Fatalf("RunArgs: %v", err)
	}

	want := []string{
		"run",
		"-i",
		"-t",
		"--rm",
		"--init",
		"--privileged=true",
		"-h",
		"gw-host",
		"--add-host",
		"host.docker.internal:host-gateway",
		"--add-host",
		"db:10.0.0.2",
		"-v",
		"/src:/workspace:z",
		"-v",
		"/data:/data:Z,ro",
		"--env",
		"A=1",
		"--env",
		"B=2",
		"-w",
		"/work",
		"-u",
		"1000:1000",
		"--entrypoint",
		"/bin/sh",
		"--security-opt=label=disable",
		"--pids-limit=100",
		"registry/app:tag",
		"bash",
		"-lc",
		"true",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("RunArgs =\n%v\nwant\n%v", args, want)
	}
}

func TestRunArgsSkipsEmptyEntrypoint(t *testing.T) {
	spec := baseSpec()
	spec.Image = "busybox"
	spec.Entrypoint = []string{}
	spec.Command = []string{"echo", "ok"}

	args, err := New("").RunArgs(spec)
	if err != nil {
		t.Fatalf("RunArgs: %v", err)
	}
	if want := []string{"run", "busybox", "echo", "ok"}; !reflect.DeepEqual(args, want) {
		t.Errorf("RunArgs = %v, want %v", args, want)
	}
}

func TestRunArgsRejectsMultiElementEntrypoint(t *testing.T) {
	spec := baseSpec()
	spec.Entrypoint = []string{"/bin/sh", "-c"}

	_, err := New("").RunArgs(spec)
	if err == nil {
		t.Fatal("RunArgs accepted a multi-element entrypoint")
	}
	if err.Error() != "entrypoint must be a single argv element" {
		t.Errorf("err = %q, want %q", err.Error(), "entrypoint must be a single argv element")
	}
}

func TestRunArgsKeepsROOptionOnce(t *testing.T) {
	spec := baseSpec()
	spec.Image = "busybox"
	spec.Mounts = []protocol.Mount{
		{Source: "/src", Target: "/dest", ReadOnly: true, Options: []string{"ro", "Z"}},
	}

	args, err := New("").RunArgs(spec)
	if err != nil {
		t.Fatalf("RunArgs: %v", err)
	}
	if want := []string{"run", "-v", "/src:/dest:ro,Z", "busybox"}; !reflect.DeepEqual(args, want) {
		t.Errorf("RunArgs = %v, want %v", args, want)
	}
}

func TestRunArgsDropsEmptyMountOptions(t *testing.T) {
	spec := baseSpec()
	spec.Image = "busybox"
	spec.Mounts = []protocol.Mount{
		{Source: "/a", Target: "/b", Options: []string{"", ""}},
	}

	args, err := New("").RunArgs(spec)
	if err != nil {
		t.Fatalf("RunArgs: %v", err)
	}
	if want := []string{"run", "-v", "/a:/b", "busybox"}; !reflect.DeepEqual(args, want) {
		t.Errorf("RunArgs = %v, want %v", args, want)
	}
}

func TestNewDefaultsToPodman(t *testing.T) {
	if got := New("").Binary(); got != "podman" {
		t.Errorf("Binary() = %q, want %q", got, "podman")
	}
	if got := New("docker").Binary(); got != "docker" {
		t.Errorf("Binary() = %q, want %q", got, "docker")
	}
}

// fakeEngine writes a shell script that mimics the engine subcommands
// used by Engine and returns its path.
func fakeEngine(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	script := `#!/bin/sh
if [ "$1" = "build" ]; then
  if [ "$3" = "fail:latest" ]; then exit 7; fi
  printf '%s %s' "$3" "$4" > "$GW_TEST_OUT"
  exit 0
fi
if [ "$1" = "image" ] && [ "$2" = "exists" ]; then
  case "$3" in
    present:latest) exit 0 ;;
    absent:latest) exit 1 ;;
    *) exit 2 ;;
  esac
fi
exit 9
`
	path := filepath.Join(dir, "engine")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildImage(t *testing.T) {
	bin := fakeEngine(t)
	out := filepath.Join(t.TempDir(), "out")
	t.Setenv("GW_TEST_OUT", out)

	ctx := filepath.Join(t.TempDir(), "ctx")
	if err := os.MkdirAll(ctx, 0755); err != nil {
		t.Fatal(err)
	}

	if err := New(bin).BuildImage(context.Background(), "app:abc", ctx); err != nil {
		t.Fatalf("BuildImage: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if want := "app:abc " + ctx; string(got) != want {
		t.Errorf("engine saw %q, want %q", got, want)
	}
}

func TestBuildImageReportsExit(t *testing.T) {
	bin := fakeEngine(t)
	t.Setenv("GW_TEST_OUT", filepath.Join(t.TempDir(), "out"))

	err := New(bin).BuildImage(context.Background(), "fail:latest", t.TempDir())
	if err == nil {
		t.Fatal("BuildImage succeeded for a failing engine")
	}
	if err.Error() != "runtime build failed (exit 7)" {
		t.Errorf("err = %q, want %q", err.Error(), "runtime build failed (exit 7)")
	}
}

func TestBuildImageLaunchFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	err := New(missing).BuildImage(context.Background(), "app:abc", t.TempDir())
	if err == nil {
		t.Fatal("BuildImage succeeded without an engine binary")
	}
	if !strings.HasPrefix(err.Error(), "failed to launch runtime build:") {
		t.Errorf("err = %q, want prefix %q", err.Error(), "failed to launch runtime build:")
	}
}

func TestImageExists(t *testing.T) {
	bin := fakeEngine(t)
	eng := New(bin)

	exists, err := eng.ImageExists(context.Background(), "present:latest")
	if err != nil {
		t.Fatalf("ImageExists: %v", err)
	}
	if !exists {
		t.Error("ImageExists(present) = false, want true")
	}

	exists, err = eng.ImageExists(context.Background(), "absent:latest")
	if err != nil {
		t.Fatalf("ImageExists: %v", err)
	}
	if exists {
		t.Error("ImageExists(absent) = true, want false")
	}

	_, err = eng.ImageExists(context.Background(), "broken:latest")
	if err == nil {
		t.Fatal("ImageExists succeeded for a broken engine")
	}
	if err.Error() != "runtime image exists failed (exit 2)" {
		t.Errorf("err = %q, want %q", err.Error(), "runtime image exists failed (exit 2)")
	}
}

func TestExecRunInvokesExec(t *testing.T) {
	bin := fakeEngine(t)

	var gotPath string
	var gotArgv []string
	orig := execFunc
	execFunc = func(path string, argv []string, env []string) error {
		gotPath = path
		gotArgv = argv
		return fmt.Errorf("exec blocked in test")
	}
	defer func() { execFunc = orig }()

	spec := baseSpec()
	spec.Image = "busybox"
	spec.Command = []string{"true"}

	err := New(bin).ExecRun(spec)
	if err == nil {
		t.Fatal("ExecRun returned nil after a failed exec")
	}
	if !strings.HasPrefix(err.Error(), "failed to exec runtime run:") {
		t.Errorf("err = %q, want prefix %q", err.Error(), "failed to exec runtime run:")
	}

	if gotPath != bin {
		t.Errorf("exec path = %q, want %q", gotPath, bin)
	}
	want := []string{bin, "run", "busybox", "true"}
	if !reflect.DeepEqual(gotArgv, want) {
		t.Errorf("exec argv = %v, want %v", gotArgv, want)
	}
}

func TestExecRunRejectsBadSpec(t *testing.T) {
	spec := baseSpec()
	spec.Entrypoint = []string{"/bin/sh", "-c"}

	if err := New("podman").ExecRun(spec); err == nil {
		t.Fatal("ExecRun accepted a multi-element entrypoint")
	}
}
