package main

import (
	"fmt"

	"github.com/aretw0/sessionvault/pkg/ports"
	"github.com/spf13/cobra"
)

func newGCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove stale sessions once",
		Long:  `Removes every session last written at or before now minus --max-age. Locks are kept.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flagAge, _ := cmd.Flags().GetDuration("max-age")
			if flagAge < 0 {
				return fmt.Errorf("--max-age must not be negative, got %s", flagAge)
			}

			e, err := openEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			maxAge := e.cfg.GC.MaxAge
			if cmd.Flags().Changed("max-age") {
				maxAge = flagAge
			}

			removed, err := ports.Sweep(cmd.Context(), e.provider, maxAge)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale sessions\n", removed)
			return nil
		},
	}
	cmd.Flags().Duration("max-age", 0, "Age after which sessions are removed (default from gc.max_age)")
	return cmd
}
