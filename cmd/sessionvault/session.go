package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/sessionvault/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <session-id>",
		Short: "Save a session payload",
		Long:  `Saves the payload given by --data, or read from stdin, under the session id.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload []byte
			if cmd.Flags().Changed("data") {
				data, _ := cmd.Flags().GetString("data")
				payload = []byte(data)
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read payload: %w", err)
				}
				payload = data
			}

			e, err := openEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.provider.Save(cmd.Context(), args[0], payload); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved session '%s' (%d bytes)\n", args[0], len(payload))
			return nil
		},
	}
	cmd.Flags().String("data", "", "Payload to store instead of reading stdin")
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Print a session payload",
		Long:  `Writes the raw payload to stdout. On a terminal the payload is printed as a quoted string.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			payload, err := e.provider.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if isTerminal(out) {
				_, err = fmt.Fprintf(out, "%q\n", payload)
				return err
			}
			_, err = out.Write(payload)
			return err
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <session-id>",
		Short: "Report whether a session exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if !e.provider.SessionExists(cmd.Context(), args[0]) {
				fmt.Fprintln(cmd.OutOrStdout(), "false")
				return domain.ErrSessionNotFound
			}
			fmt.Fprintln(cmd.OutOrStdout(), "true")
			return nil
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <session-id>...",
		Short: "Remove one or more sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			var errs []error
			for _, id := range args {
				if err := e.provider.Destroy(cmd.Context(), id); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
			}
			if len(errs) > 0 {
				return fmt.Errorf("failed to remove %d of %d sessions: %w", len(errs), len(args), errors.Join(errs...))
			}
			return nil
		},
	}
}

var errAlreadyLocked = errors.New("session already locked")

func newLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock <session-id>",
		Short: "Take the advisory lock for a session",
		Long: `Takes the advisory lock without waiting. Fails if another holder has it.
The lock outlives this command on the file and redis backends.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if !e.provider.Lock(cmd.Context(), args[0]) {
				return errAlreadyLocked
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Locked session '%s'\n", args[0])
			return nil
		},
	}
}

func newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <session-id>",
		Short: "Release the advisory lock for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			e.provider.Unlock(cmd.Context(), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Unlocked session '%s'\n", args[0])
			return nil
		},
	}
}
