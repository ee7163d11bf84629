// Package cli implements the giftwrap command line. The root command owns
// the --gw-* argument scanner and the launch flow; the hidden agent
// subcommand is the in-container entry point.
package cli

import (
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/majorcontext/giftwrap/internal/config"
	"github.com/majorcontext/giftwrap/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "giftwrap [--gw-flags] [engine args] [-- command ...]",
	Short: "Run a command in an ephemeral container mirroring the caller",
	Long: `Giftwrap launches developer commands inside an ephemeral container that
mirrors the caller's identity, tagging the image by a content fingerprint
of the project's build context.`,
	SilenceUsage: true,
	// The --gw-* scanner owns the argument grammar; everything else is
	// engine arguments and the user command.
	DisableFlagParsing: true,
	PersistentPreRunE:  initLogging,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLaunch(args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func initLogging(cmd *cobra.Command, args []string) error {
	globalCfg, _ := config.LoadGlobal()
	if err := log.Init(log.Options{
		Verbose:       os.Getenv("GW_VERBOSE") != "",
		JSONFormat:    os.Getenv("GW_LOG_JSON") != "",
		DebugDir:      globalCfg.DebugLogDir(),
		RetentionDays: globalCfg.Debug.RetentionDays,
	}); err != nil {
		// Log init failure is non-fatal; the launch proceeds without the
		// debug file sink.
		cmd.PrintErrf("Warning: failed to initialize debug logging: %v\n", err)
	}
	log.SetLaunchID(uuid.NewString())
	return nil
}
