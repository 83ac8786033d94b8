package command

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newLogin(root *Root) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(root, cmd.OutOrStdout(), email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted if omitted)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runLogin(root *Root, out io.Writer, email, password string) error {
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
	if err := app.Login(ctx, email, password); err != nil {
		return err
	}

	snap := app.Snapshot()
	green := color.New(color.FgGreen).SprintFunc()
	if snap.User != nil {
		fmt.Fprintf(out, "%s Logged in as %s\n", green("✓"), snap.User.Email)
	} else {
		fmt.Fprintf(out, "%s Logged in\n", green("✓"))
	}
	return nil
}

func promptPassword(out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	return password, nil
}
