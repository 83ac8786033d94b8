package command

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/auxodev/dashclient/internal/tokeninfo"
)

const commandTimeout = 60 * time.Second

// commandContext bounds a one-shot command so a dead backend cannot hang
// the terminal.
func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

func newStatus(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(root, cmd.OutOrStdout())
		},
	}
}

func runStatus(root *Root, out io.Writer) error {
	app, err := root.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := commandContext()
	defer cancel()

	app.Start(ctx)
	snap := app.Snapshot()

	tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)

	if !snap.LoggedIn {
		if snap.Token != "" {
			// Token survived but the profile did not resolve
			fmt.Fprintln(tw, "Status:\tDegraded (token present, profile unavailable)")
		} else {
			fmt.Fprintln(tw, "Status:\tNot authenticated")
		}
		return tw.Flush()
	}

	fmt.Fprintln(tw, "Status:\tAuthenticated")
	fmt.Fprintf(tw, "Email:\t%s\n", snap.User.Email)
	if snap.User.Name != "" {
		fmt.Fprintf(tw, "Name:\t%s\n", snap.User.Name)
	}
	fmt.Fprintf(tw, "Verified:\t%t\n", snap.User.Verified)
	if snap.AccountID != 0 {
		fmt.Fprintf(tw, "Account:\t%d\n", snap.AccountID)
	}

	maskedToken := snap.Token
	if len(maskedToken) > 32 {
		maskedToken = maskedToken[:32] + "..."
	}
	fmt.Fprintf(tw, "Token:\t%s\n", maskedToken)

	if ttl, ok := tokeninfo.TimeToExpiry(snap.Token, time.Now()); ok {
		fmt.Fprintf(tw, "Expires in:\t%s\n", ttl.Round(time.Second))
	}

	return tw.Flush()
}
