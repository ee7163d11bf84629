// Package launch assembles one container invocation: it merges the project
// config, CLI overrides, and the build-context fingerprint into the image
// reference, the ordered mount list, and the two transport structures
// (ContainerSpec for the engine, InternalSpec for the in-container agent).
package launch

import (
	"fmt"
	"os"
	osuser "os/user"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/majorcontext/giftwrap/internal/buildctx"
	"github.com/majorcontext/giftwrap/internal/config"
	"github.com/majorcontext/giftwrap/internal/log"
	"github.com/majorcontext/giftwrap/internal/name"
	"github.com/majorcontext/giftwrap/internal/protocol"
	"github.com/majorcontext/giftwrap/internal/term"
	"github.com/majorcontext/giftwrap/internal/worktree"
)

// Overridden in tests to avoid shelling out to infocmp.
var loadTerminfo = term.LoadTerminfo

// Options carries the CLI side of the launch: overrides from --gw-* flags
// and the argument groups left after the scanner.
type Options struct {
	// ImageOverride replaces the whole image reference (--gw-img).
	ImageOverride string
	// DigestOverride forces the fingerprint tag without computing one
	// (--gw-use-ctx).
	DigestOverride string
	// ExtraArgs are engine arguments from --gw-extra-args, already
	// shell-word split.
	ExtraArgs []string
	// RuntimeArgs are the CLI arguments before the -- delimiter, passed to
	// the engine verbatim.
	RuntimeArgs []string
	// Command is the user command after the -- delimiter.
	Command []string
	// Cwd is the caller's original working directory, the default workdir.
	Cwd string
	// TTY is true when stdin and stdout are both terminals.
	TTY bool
}

// ImageRef is a resolved image reference. FromFingerprint marks a tag that
// came from a freshly computed fingerprint, making the image eligible for
// build-if-missing.
type ImageRef struct {
	Image           string
	FromFingerprint bool
}

// Result is the assembled launch, ready for the engine adapter.
type Result struct {
	Container       *protocol.ContainerSpec
	Internal        *protocol.InternalSpec
	Image           string
	FromFingerprint bool
}

// ResolveImage resolves the image reference. Precedence: --gw-img replaces
// everything; --gw-use-ctx forces the tag (valid only when fingerprinting
// is configured); otherwise a computed fingerprint tags the configured base
// name, which stands alone when fingerprinting is not configured.
func ResolveImage(cfg *config.Config, opts Options) (ImageRef, error) {
	if opts.ImageOverride != "" {
		return ImageRef{Image: opts.ImageOverride}, nil
	}
	base, _ := cfg.First("gw_container")
	if opts.DigestOverride != "" {
		if !cfg.Has("version_by_build_context") {
			return ImageRef{}, fmt.Errorf("context sha is unused: version_by_build_context is not configured")
		}
		return ImageRef{Image: base + ":" + opts.DigestOverride}, nil
	}
	fp, err := buildctx.FromConfig(cfg.RootDir, cfg.Params)
	if err != nil {
		return ImageRef{}, err
	}
	if fp == nil {
		return ImageRef{Image: base}, nil
	}
	return ImageRef{Image: base + ":" + fp.Digest, FromFingerprint: true}, nil
}

// Build assembles the full launch from config and CLI options.
func Build(cfg *config.Config, opts Options) (*Result, error) {
	ref, err := ResolveImage(cfg, opts)
	if err != nil {
		return nil, err
	}

	rootTarget := cfg.RootDir
	workdir := opts.Cwd
	if target, ok := cfg.First("mount_to"); ok {
		rootTarget = target
		workdir = target
	}
	if dir, ok := cfg.First("cd_to"); ok {
		workdir = dir
	}

	env := map[string]string{"GW_BUILD_ROOT": rootTarget}
	var terminfo *protocol.TerminfoSpec
	if opts.TTY {
		if termName := os.Getenv("TERM"); termName != "" {
			env["TERM"] = termName
			terminfo, err = loadTerminfo(termName)
			if err != nil {
				return nil, err
			}
		}
	}
	for _, key := range cfg.Values("env_overrides") {
		if value, ok := os.LookupEnv(key); ok {
			env[key] = value
		}
	}

	mounts := []protocol.Mount{{Source: cfg.RootDir, Target: rootTarget}}
	shares, err := extraShareMounts(cfg)
	if err != nil {
		return nil, err
	}
	mounts = append(mounts, shares...)
	if cfg.Has("share_git_dir") {
		if mount := worktree.ShareMount(cfg.RootDir); mount != nil {
			mounts = append(mounts, *mount)
		}
	}

	extraShell := ""
	if script, ok := cfg.First("extra_shell"); ok {
		if !filepath.IsAbs(script) {
			script = filepath.Join(cfg.RootDir, script)
		}
		extraShell = script
		mounts = append(mounts, protocol.Mount{Source: script, Target: script})
	}

	agentMount, err := locateAgent(cfg, rootTarget)
	if err != nil {
		return nil, err
	}
	mounts = append(mounts, agentMount)

	internal := &protocol.InternalSpec{
		ProtocolVersion: protocol.Version,
		Workdir:         workdir,
		RootDir:         rootTarget,
		User:            callerUser(),
		EnvOverrides:    env,
		PersistEnv:      persistEnv(cfg),
		Terminfo:        terminfo,
		Command:         opts.Command,
		ExtraShell:      extraShell,
		PrefixCmd:       cfg.Values("prefix_cmd"),
		PrefixCmdQuiet:  cfg.Values("prefix_cmd_quiet"),
	}
	payload, err := internal.Encode()
	if err != nil {
		return nil, err
	}

	containerEnv := make(map[string]string, len(env)+1)
	for key, value := range env {
		containerEnv[key] = value
	}
	containerEnv[protocol.SpecEnv] = payload

	var extraArgs []string
	extraArgs = append(extraArgs, opts.ExtraArgs...)
	extraArgs = append(extraArgs, cfg.Values("extra_args")...)
	extraArgs = append(extraArgs, opts.RuntimeArgs...)

	container := &protocol.ContainerSpec{
		Image:       ref.Image,
		Hostname:    name.Hostname(ref.Image),
		Mounts:      mounts,
		Env:         containerEnv,
		User:        "root",
		Interactive: true,
		TTY:         opts.TTY,
		Init:        true,
		Privileged:  true,
		Remove:      true,
		Entrypoint:  []string{agentMount.Target},
		Command:     []string{"agent"},
		ExtraArgs:   extraArgs,
		ExtraHosts:  cfg.Values("extra_hosts"),
	}

	log.Debug("assembled launch",
		"image", ref.Image, "mounts", len(mounts), "workdir", workdir,
		"from_fingerprint", ref.FromFingerprint)
	return &Result{
		Container:       container,
		Internal:        internal,
		Image:           ref.Image,
		FromFingerprint: ref.FromFingerprint,
	}, nil
}

// extraShareMounts parses extra_shares entries. Each value is
// source[:target[:opt,...]]; a source of $NAME resolves through the
// environment and the entry is skipped when the variable is unset. Relative
// sources are anchored at the build root; a bare source mounts to itself.
func extraShareMounts(cfg *config.Config) ([]protocol.Mount, error) {
	var mounts []protocol.Mount
	for _, share := range cfg.Values("extra_shares") {
		parts := strings.SplitN(share, ":", 3)
		source := parts[0]
		if envName, ok := strings.CutPrefix(source, "$"); ok {
			value, set := os.LookupEnv(envName)
			if !set || value == "" {
				log.Debug("skipping extra share, variable unset", "share", share)
				continue
			}
			source = value
		}
		if source == "" {
			return nil, fmt.Errorf("extra share %q has an empty source", share)
		}
		if !filepath.IsAbs(source) {
			source = filepath.Join(cfg.RootDir, source)
		}
		target := source
		if len(parts) > 1 && parts[1] != "" {
			target = parts[1]
		}
		var options []string
		if len(parts) > 2 && parts[2] != "" {
			options = strings.Split(parts[2], ",")
		}
		mounts = append(mounts, protocol.Mount{Source: source, Target: target, Options: options})
	}
	return mounts, nil
}

// persistEnv resolves the persist_environment snapshot path. The path is
// canonicalized when it already exists so the agent sees the same file the
// host would.
func persistEnv(cfg *config.Config) *protocol.PersistEnvSpec {
	value, ok := cfg.First("persist_environment")
	if !ok {
		return nil
	}
	if !filepath.IsAbs(value) {
		value = filepath.Join(cfg.RootDir, value)
	}
	if canonical, err := filepath.EvalSymlinks(value); err == nil {
		value = canonical
	}
	return &protocol.PersistEnvSpec{Path: value, Restore: true, Save: true}
}

// callerUser captures the invoking identity the agent will reproduce.
func callerUser() protocol.UserSpec {
	uid := os.Getuid()
	gid := os.Getgid()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("LOGNAME")
	}
	if username == "" {
		if entry, err := osuser.LookupId(strconv.Itoa(uid)); err == nil {
			username = entry.Username
		}
	}
	if username == "" {
		username = strconv.Itoa(uid)
	}
	return protocol.UserSpec{
		Name: username,
		UID:  uid,
		GID:  gid,
		Home: path.Join("/tmp", "dr-tmp-home-"+username, username),
	}
}
