package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the passport command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passport",
		Short: "Game server credential and verification service",
		Long: `passport verifies sealed player claims from game servers, resolves
player bindings and issues session and bind credentials.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newKeygenCmd())
	cmd.AddCommand(newSealCmd())

	return cmd
}
