// Package cli wires the routeprobe subcommands.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "routeprobe",
		Short:         "Client-side probe for the LLM routing service",
		Long:          "routeprobe drives an LLM routing service from the client side:\ninteractive routed chat, benchmark batches over the plan endpoint,\nAPI key generation, and a deterministic mock router for local drills.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newBenchCmd())
	cmd.AddCommand(newKeygenCmd())
	cmd.AddCommand(newMockCmd())
	return cmd
}

func Execute() error {
	return NewRootCmd().Execute()
}
