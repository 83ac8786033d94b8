// Package command wires the CLI surface around the session client. Each
// subcommand builds the application from the shared config flags, performs
// one lifecycle operation, and prints the outcome.
package command

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/auxodev/dashclient/internal"
	"github.com/auxodev/dashclient/internal/config"
	"github.com/auxodev/dashclient/internal/log"
)

var BuildVersion = "dev"

// Root carries the persistent flags shared by every subcommand.
type Root struct {
	ConfigPath string
	LogLevel   string
}

// New builds the root command with all subcommands attached.
func New() *cobra.Command {
	root := &Root{}

	cmd := &cobra.Command{
		Use:     "dashclient",
		Short:   "Session client for the dashboard auth backend",
		Version: BuildVersion,

		// Don't print usage info automatically when errors occur.
		// Most of the time, the errors are not related to usage.
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if root.LogLevel != "" {
				return log.SetLogLevel(root.LogLevel)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&root.ConfigPath, "config", "c", "dashclient.json", "path to config file")
	cmd.PersistentFlags().StringVar(&root.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		newLogin(root),
		newRegister(root),
		newLogout(root),
		newStatus(root),
		newRefresh(root),
		newOAuth(root),
		newVerify(root),
		newAccount(root),
		newWatch(root),
	)

	return cmd
}

// buildApp loads the config and assembles the application. Notices from the
// session core are printed to stderr so command output stays parseable.
func (r *Root) buildApp() (*internal.App, error) {
	cfg, err := config.Load(r.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return internal.NewApp(cfg, internal.WithNotices(printNotice))
}

func printNotice(message string, isError bool) {
	if isError {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("!"), message)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", color.GreenString("✓"), message)
}
