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

func newOAuth(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "oauth <provider>",
		Short: "Sign in through an OAuth provider",
		Long: `Starts the redirect flow for a provider, prints the URL to open in a
browser, and waits for the callback URL to be pasted back. The anti-forgery
state issued at the start leg is validated against the pasted callback.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOAuth(root, cmd.OutOrStdout(), args[0])
		},
	}
}

func runOAuth(root *Root, out io.Writer, provider string) error {
	app, err := root.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := commandContext()
	defer cancel()

	redirect, err := app.BeginOAuth(ctx, provider)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "To authenticate, visit:\n\n  %s\n\n", redirect)
	fmt.Fprint(out, "Paste the callback URL here: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading callback URL: %w", err)
	}
	callback := strings.TrimSpace(line)
	if callback == "" {
		return fmt.Errorf("no callback URL provided")
	}

	result, err := app.CompleteOAuth(ctx, provider, callback)
	if err != nil {
		return err
	}
	if !result.Completed {
		return fmt.Errorf("the callback was not accepted; start the flow again")
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
