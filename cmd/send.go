package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/irfan-khan-96/ruff-web/internal/negotiator"
	"github.com/irfan-khan-96/ruff-web/internal/signaling"
	"github.com/irfan-khan-96/ruff-web/internal/stash"
	"github.com/irfan-khan-96/ruff-web/internal/transfer"
	"github.com/irfan-khan-96/ruff-web/internal/ui"
)

var sendCmd = &cobra.Command{
	Use:     "send <stash-id>",
	Aliases: []string{"s"},
	Short:   "Share a stash with a nearby device",
	Long: `Share a single stash with another device. Prints a short code; run
'ruff-web receive <code>' on the other device to accept it.

Examples:
  ruff-web send 42
  ruff-web send --relay-url wss://relay.example.com/ws 42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendStash(cmd.Context(), cmd, args[0])
	},
}

func sendStash(ctx context.Context, cmd *cobra.Command, stashID string) error {
	spinner := ui.NewConnectionSpinner("Connecting to relay...")
	spinner.Start()
	conn, err := NewConnectionContext(cmd.Flags())
	if err != nil {
		spinner.Stop()
		return err
	}
	defer conn.Close()
	spinner.Stop()

	code, err := signaling.GenerateCode()
	if err != nil {
		return err
	}
	if err := conn.JoinRoom(code); err != nil {
		return err
	}

	// The fetch starts now, in parallel with the peer wait; the send
	// happens once both the payload and the channel are ready.
	stashClient := stash.NewClient(conn.Config.StashURL, conn.Config.StashToken, conn.Log)
	sender := transfer.NewSender(stashID, stashClient.FetchPayload, conn.Log)
	sender.Prefetch(ctx)

	neg, err := negotiator.New(negotiator.RoleInitiator, code, conn.Client, negotiator.Config{
		STUNServers: conn.Config.STUNServers,
		PeerWait:    conn.Config.PeerWait,
	}, conn.Log)
	if err != nil {
		return err
	}
	defer neg.Close()

	if err := neg.Start(); err != nil {
		return err
	}

	ui.RenderShareCode(code)

	started := time.Now()
	spinner = ui.NewWaitingSpinner("Waiting for a peer to join...")
	spinner.Start()
	defer spinner.Stop()

	var sentBytes int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-conn.Handler.PeerJoined:
			spinner.UpdateMessage("Peer joined, connecting...")
			if err := neg.HandlePeerJoined(); err != nil {
				return err
			}

		case payload := <-conn.Handler.Signals:
			if err := neg.HandleSignal(payload); err != nil {
				return err
			}

		case <-conn.Handler.PeerLeft:
			if sender.Sent() {
				spinner.Stop()
				printSendSummary(code, stashID, sentBytes, started)
				return nil
			}
			return fmt.Errorf("peer left before the transfer completed")

		case msg := <-conn.Handler.Errors:
			if !relayErrorFatal(neg.State()) {
				conn.Log.WithField("error", msg).Debug("ignoring relay error after connect")
				continue
			}
			return fmt.Errorf("relay error: %s", msg)

		case ch := <-neg.Ready():
			spinner.UpdateMessage("Connected, sending payload...")
			if err := sender.OnChannelOpen(ctx, ch); err != nil {
				return err
			}
			sentBytes = sender.Size()
			spinner.UpdateMessage("Payload sent, waiting for peer to finish...")

		case update := <-neg.Updates():
			switch update.State {
			case negotiator.StateFailed:
				return update.Err
			case negotiator.StateClosed:
				if sender.Sent() {
					spinner.Stop()
					printSendSummary(code, stashID, sentBytes, started)
					return nil
				}
				return fmt.Errorf("connection closed before the transfer completed")
			}
		}
	}
}

func printSendSummary(code, stashID string, size int, started time.Time) {
	ui.PrintSuccessf("Stash %s sent %s", stashID, ui.IconComplete)
	ui.RenderSessionSummary(ui.SessionSummary{
		Status:   "Sent",
		Code:     code,
		StashID:  stashID,
		Size:     ui.FormatSize(size),
		Duration: time.Since(started).Round(time.Millisecond).String(),
	})
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().String("relay-url", "", "Relay WebSocket URL")
	sendCmd.Flags().String("stash-url", "", "Stash service base URL")
	sendCmd.Flags().String("stash-token", "", "Stash service API token")
	sendCmd.Flags().StringSlice("stun", nil, "STUN server URLs")
	sendCmd.Flags().Duration("peer-wait", 0, "How long to wait for a peer before giving up")
	sendCmd.Flags().String("log", "", "Log level (debug, info, warn, error)")
}
