package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/auxodev/dashclient/internal/session"
)

func newWatch(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow session changes until interrupted",
		Long: `Keeps the session alive and prints every state change: the initial
snapshot, scheduled token renewals, and the eventual expiry or logout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(root, cmd.OutOrStdout())
		},
	}
}

func runWatch(root *Root, out io.Writer) error {
	app, err := root.buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	startCtx, cancel := commandContext()
	app.Start(startCtx)
	cancel()

	var group run.Group

	done := make(chan struct{})
	group.Add(func() error {
		unsubscribe := app.Subscribe(func(snap session.State) {
			printState(out, snap)
		})
		defer unsubscribe()
		<-done
		return nil
	}, func(error) {
		close(done)
	})

	group.Add(run.SignalHandler(context.Background(), os.Interrupt, syscall.SIGTERM))

	err = group.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		fmt.Fprintf(out, "Stopped by %s\n", sigErr.Signal)
		return nil
	}
	return err
}

func printState(out io.Writer, snap session.State) {
	switch {
	case snap.Loading:
		fmt.Fprintln(out, "session: working...")
	case snap.LoggedIn:
		fmt.Fprintf(out, "session: authenticated as %s (account %d)\n", snap.User.Email, snap.AccountID)
	case snap.Token != "":
		fmt.Fprintln(out, "session: degraded (token present, profile unavailable)")
	default:
		fmt.Fprintln(out, "session: anonymous")
	}
}
