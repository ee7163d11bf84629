package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/shlex"

	"github.com/majorcontext/giftwrap/internal/log"
)

// action is a terminal --gw-* flag: it stops the scan, runs on its own,
// and discards the remaining arguments.
type action int

const (
	actionLaunch action = iota
	actionHelp
	actionPrintCtx
	actionPrintImage
	actionShowConfig
)

// gwArgs is the scanned CLI state: --gw-* overrides plus the argument
// groups left over for the engine and the user command.
type gwArgs struct {
	PrintOnly      bool
	Rebuild        bool
	ImageOverride  string
	DigestOverride string
	ExtraArgs      []string
	RuntimeArgs    []string
	Command        []string
}

// scanArgs consumes leading --gw-* arguments. The first argument without
// the prefix ends the scan; unknown --gw-* arguments are ignored. Of what
// remains, everything before the -- delimiter goes to the engine verbatim
// and everything after it is the user command; without a delimiter the
// whole remainder is the user command.
func scanArgs(args []string) (*gwArgs, action, error) {
	res := &gwArgs{}
	i := 0
	for ; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--gw-") {
			break
		}
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "--gw-print":
			res.PrintOnly = true
		case "--gw-rebuild":
			res.Rebuild = true
		case "--gw-help":
			return res, actionHelp, nil
		case "--gw-ctx":
			return res, actionPrintCtx, nil
		case "--gw-print-image":
			return res, actionPrintImage, nil
		case "--gw-show-config":
			return res, actionShowConfig, nil
		case "--gw-use-ctx":
			if !hasValue {
				return nil, actionLaunch, fmt.Errorf("--gw-use-ctx requires a digest")
			}
			res.DigestOverride = value
		case "--gw-img":
			if !hasValue {
				return nil, actionLaunch, fmt.Errorf("--gw-img requires an image reference")
			}
			res.ImageOverride = value
		case "--gw-extra-args":
			if !hasValue {
				return nil, actionLaunch, fmt.Errorf("--gw-extra-args requires a value")
			}
			parts, err := shlex.Split(value)
			if err != nil {
				return nil, actionLaunch, fmt.Errorf("failed to parse --gw-extra-args: %v", err)
			}
			res.ExtraArgs = append(res.ExtraArgs, parts...)
		default:
			log.Debug("ignoring unknown flag", "flag", arg)
		}
	}

	rest := args[i:]
	if idx := slices.Index(rest, "--"); idx >= 0 {
		res.RuntimeArgs = rest[:idx]
		res.Command = rest[idx+1:]
	} else {
		res.Command = rest
	}
	return res, actionLaunch, nil
}
