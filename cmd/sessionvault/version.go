package main

import (
	"fmt"

	"github.com/aretw0/sessionvault"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of sessionvault",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sessionvault version %s\n", sessionvault.Version)
		},
	}
}
