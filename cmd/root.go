package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/irfan-khan-96/ruff-web/internal/ui"
	"github.com/irfan-khan-96/ruff-web/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ruff-web",
	Short: "Share a stash with a nearby device over WebRTC",
	Long: `ruff-web moves a single stash directly between two devices using a
WebRTC data channel. One side runs 'send' and reads out a short code,
the other runs 'receive' with that code; the relay only brokers the
connection, the payload itself never touches it.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
