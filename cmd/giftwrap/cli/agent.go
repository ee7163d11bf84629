package cli

import (
	"github.com/spf13/cobra"

	"github.com/majorcontext/giftwrap/internal/agent"
)

// agentCmd is the in-container entry point. The launcher mounts the
// giftwrap binary into the container and runs it with argv ["agent"]; it
// is hidden because nothing on the host invokes it directly.
var agentCmd = &cobra.Command{
	Use:                "agent",
	Short:              "In-container provisioning entry point",
	Hidden:             true,
	SilenceUsage:       true,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return agent.Run(args)
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
}
