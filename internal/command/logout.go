package command

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newLogout(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and drop the saved credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(root, cmd.OutOrStdout())
		},
	}
}

func runLogout(root *Root, out io.Writer) error {
	app, err := root.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := commandContext()
	defer cancel()
	app.Start(ctx)
	app.Logout(ctx)

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(out, "%s Logged out\n", green("✓"))
	return nil
}
