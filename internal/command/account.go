package command

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

func newAccount(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "account <id>",
		Short: "Select the active account scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccount(root, cmd.OutOrStdout(), args[0])
		},
	}
}

func runAccount(root *Root, out io.Writer, rawID string) error {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("account id must be numeric, got %q", rawID)
	}

	app, err := root.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := commandContext()
	defer cancel()

	app.Start(ctx)
	if !app.Snapshot().LoggedIn {
		return fmt.Errorf("not authenticated; run login first")
	}

	app.Controller().SelectAccount(id)
	fmt.Fprintf(out, "Active account set to %d\n", id)
	return nil
}
