package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fieldcap/internal/session"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the local capture session",
	}

	sessionCmd.AddCommand(newSessionShowCommand(ctx))
	sessionCmd.AddCommand(newSessionResetCommand(ctx))

	return sessionCmd
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored session identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := ctx.sessionManager()
			if err != nil {
				return err
			}
			stored, err := manager.Load()
			if errors.Is(err, session.ErrNoSession) {
				fmt.Fprintln(cmd.OutOrStdout(), "No session yet; run `fieldcap wizard` to choose an identity")
				return nil
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:  %s\n", stored.ID)
			fmt.Fprintf(out, "Identity: %s <%s>\n", stored.User.DisplayName, stored.User.Email)
			fmt.Fprintf(out, "Created:  %s\n", stored.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newSessionResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the stored session so a new identity can be chosen",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := ctx.sessionManager()
			if err != nil {
				return err
			}
			if err := manager.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session cleared")
			return nil
		},
	}
}
