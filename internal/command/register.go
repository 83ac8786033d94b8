package command

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newRegister(root *Root) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(root, cmd.OutOrStdout(), email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted if omitted)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runRegister(root *Root, out io.Writer, email, password string) error {
	if password == "" {
		var err error
		password, err = promptPassword(out)
		if err != nil {
			return err
		}
	}

	app, err := root.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := commandContext()
	defer cancel()

	message, err := app.Register(ctx, email, password)
	if err != nil {
		return err
	}
	if message == "" {
		message = "Account created"
	}
	fmt.Fprintln(out, message)
	return nil
}
