package command

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRefresh(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token from the saved credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(root, cmd.OutOrStdout())
		},
	}
}

func runRefresh(root *Root, out io.Writer) error {
	app, err := root.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := commandContext()
	defer cancel()

	app.Start(ctx)
	snap := app.Snapshot()
	if snap.Token == "" {
		return fmt.Errorf("no session to refresh; run login first")
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(out, "%s Session refreshed\n", green("✓"))
	return nil
}
