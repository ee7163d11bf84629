package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/majorcontext/giftwrap/internal/buildctx"
	"github.com/majorcontext/giftwrap/internal/config"
	"github.com/majorcontext/giftwrap/internal/engine"
	"github.com/majorcontext/giftwrap/internal/launch"
	"github.com/majorcontext/giftwrap/internal/log"
	"github.com/majorcontext/giftwrap/internal/term"
	"github.com/majorcontext/giftwrap/internal/ui"
)

const helpText = `  --gw-print              print the engine command instead of running it
  --gw-ctx                print the build context digest
  --gw-print-image        print the resolved image reference
  --gw-show-config        print the merged configuration
  --gw-use-ctx=<digest>   force the build context digest
  --gw-img=<image>        force the image reference
  --gw-rebuild            rebuild the image before launching
  --gw-extra-args=<args>  extra engine arguments (shell words)
  --gw-help               show this help

Arguments before -- are passed to the engine; the command after -- runs
inside the container.`

// runLaunch is the host-side flow: scan arguments, load the project
// config, assemble the launch, and hand the process over to the engine.
func runLaunch(args []string) error {
	opts, act, err := scanArgs(args)
	if err != nil {
		return err
	}
	if act == actionHelp {
		fmt.Println(ui.Bold("GW Flags:"))
		fmt.Println(helpText)
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to resolve cwd: %v", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return err
	}
	log.Debug("loaded config", "path", cfg.Path, "root", cfg.RootDir)

	launchOpts := launch.Options{
		ImageOverride:  opts.ImageOverride,
		DigestOverride: opts.DigestOverride,
		ExtraArgs:      opts.ExtraArgs,
		RuntimeArgs:    opts.RuntimeArgs,
		Command:        opts.Command,
		Cwd:            cwd,
		TTY:            term.IsTerminal(os.Stdin) && term.IsTerminal(os.Stdout),
	}

	switch act {
	case actionShowConfig:
		printConfig(cfg)
		return nil
	case actionPrintCtx:
		fp, err := buildctx.FromConfig(cfg.RootDir, cfg.Params)
		if err != nil {
			return err
		}
		if fp == nil {
			return fmt.Errorf("version_by_build_context is not configured in %s", cfg.Path)
		}
		fmt.Println(fp.Digest)
		return nil
	case actionPrintImage:
		ref, err := launch.ResolveImage(cfg, launchOpts)
		if err != nil {
			return err
		}
		fmt.Println(ref.Image)
		return nil
	}

	res, err := launch.Build(cfg, launchOpts)
	if err != nil {
		return err
	}

	globalCfg, _ := config.LoadGlobal()
	eng := engine.New(globalCfg.Engine)

	if opts.PrintOnly {
		runArgs, err := eng.RunArgs(res.Container)
		if err != nil {
			return err
		}
		for _, tok := range append([]string{eng.Binary()}, runArgs...) {
			fmt.Println("++++ " + tok)
		}
		return nil
	}

	if err := runPrelaunchHook(cfg); err != nil {
		return err
	}

	ctx := context.Background()
	if opts.Rebuild {
		ui.Infof("Rebuilding container %s", res.Image)
		if err := eng.BuildImage(ctx, res.Image, cfg.RootDir); err != nil {
			return err
		}
	} else if res.FromFingerprint {
		exists, err := eng.ImageExists(ctx, res.Image)
		if err != nil {
			return err
		}
		if !exists {
			ui.Infof("Building container %s", res.Image)
			if err := eng.BuildImage(ctx, res.Image, cfg.RootDir); err != nil {
				return err
			}
		}
	}

	return eng.ExecRun(res.Container)
}

// runPrelaunchHook runs the configured hook argv in the build root with
// inherited stdio. A nonzero exit aborts the launch.
func runPrelaunchHook(cfg *config.Config) error {
	argv := cfg.Values("prelaunch_hook")
	if len(argv) == 0 {
		return nil
	}
	log.Debug("running prelaunch hook", "argv", argv)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cfg.RootDir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("prelaunch hook failed: %v", err)
	}
	return nil
}

// printConfig dumps the merged parameter map, one key per line in sorted
// order, with values quoted the way the config grammar would accept them
// back.
func printConfig(cfg *config.Config) {
	keys := make([]string, 0, len(cfg.Params))
	for key := range cfg.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		line := key
		for _, value := range cfg.Params[key] {
			line += " " + quoteValue(value)
		}
		fmt.Println(line)
	}
}

func quoteValue(value string) string {
	if value == "" || strings.ContainsAny(value, " \t\"'#") {
		return strconv.Quote(value)
	}
	return value
}
