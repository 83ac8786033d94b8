package command

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/auxodev/dashclient/internal/api"
)

func newVerify(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Resolve one-time tokens from account emails",
	}

	cmd.AddCommand(
		newVerifyEmail(root),
		newVerifyReset(root),
	)

	return cmd
}

func newVerifyEmail(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "email <token>",
		Short: "Confirm an email address from a verification link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(root, cmd.OutOrStdout(), api.VerifyEmail, args[0])
		},
	}
}

func newVerifyReset(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "password-reset <token>",
		Short: "Exchange a password-reset link token for a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(root, cmd.OutOrStdout(), api.VerifyPasswordReset, args[0])
		},
	}
}

func runVerify(root *Root, out io.Writer, kind api.VerificationKind, token string) error {
	app, err := root.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := commandContext()
	defer cancel()

	app.Start(ctx)
	result, err := app.Controller().HandleVerification(ctx, kind, token)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	switch kind {
	case api.VerifyEmail:
		fmt.Fprintf(out, "%s Email verified\n", green("✓"))
	case api.VerifyPasswordReset:
		fmt.Fprintf(out, "%s Reset token: %s\n", green("✓"), result.ResetToken)
	}
	return nil
}
