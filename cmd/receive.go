package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/irfan-khan-96/ruff-web/internal/negotiator"
	"github.com/irfan-khan-96/ruff-web/internal/signaling"
	"github.com/irfan-khan-96/ruff-web/internal/stash"
	"github.com/irfan-khan-96/ruff-web/internal/transfer"
	"github.com/irfan-khan-96/ruff-web/internal/ui"
)

var receiveCmd = &cobra.Command{
	Use:     "receive <code>",
	Aliases: []string{"r"},
	Short:   "Receive a stash shared from a nearby device",
	Long: `Receive a stash from another device using the code its sender printed.

Examples:
  ruff-web receive AB12CD`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return receiveStash(cmd.Context(), cmd, args[0])
	},
}

type receiveResult struct {
	id  string
	err error
}

func receiveStash(ctx context.Context, cmd *cobra.Command, rawCode string) error {
	code := signaling.NormalizeCode(rawCode)
	if code == "" {
		return fmt.Errorf("no share code given")
	}

	spinner := ui.NewConnectionSpinner("Connecting to relay...")
	spinner.Start()
	conn, err := NewConnectionContext(cmd.Flags())
	if err != nil {
		spinner.Stop()
		return err
	}
	defer conn.Close()
	spinner.Stop()

	if err := conn.JoinRoom(code); err != nil {
		if errors.Is(err, signaling.ErrRoomFull) {
			return fmt.Errorf("that share already has a receiver")
		}
		return err
	}

	stashClient := stash.NewClient(conn.Config.StashURL, conn.Config.StashToken, conn.Log)
	receiver := transfer.NewReceiver(stashClient.ImportPayload, conn.Log)

	results := make(chan receiveResult, 1)
	var messageSeen atomic.Bool
	neg, err := negotiator.New(negotiator.RoleResponder, code, conn.Client, negotiator.Config{
		STUNServers: conn.Config.STUNServers,
		PeerWait:    conn.Config.PeerWait,
		OnChannel: func(dc *webrtc.DataChannel) {
			// Attached before the channel opens so the first message
			// cannot be missed.
			dc.OnMessage(func(msg webrtc.DataChannelMessage) {
				messageSeen.Store(true)
				id, err := receiver.OnMessage(ctx, msg.Data)
				select {
				case results <- receiveResult{id: id, err: err}:
				default:
				}
			})
		},
	}, conn.Log)
	if err != nil {
		return err
	}
	defer neg.Close()

	if err := neg.Start(); err != nil {
		return err
	}

	started := time.Now()
	spinner = ui.NewWaitingSpinner("Waiting for the sender...")
	spinner.Start()
	defer spinner.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case payload := <-conn.Handler.Signals:
			spinner.UpdateMessage("Connecting...")
			if err := neg.HandleSignal(payload); err != nil {
				return err
			}

		case <-conn.Handler.PeerLeft:
			if id, ok := receiver.Imported(); ok {
				spinner.Stop()
				printReceiveSummary(code, id, started)
				return nil
			}
			err := fmt.Errorf("sender left before the transfer completed")
			if !messageSeen.Load() {
				return err
			}
			return finishPendingImport(results, spinner, code, started, err)

		case msg := <-conn.Handler.Errors:
			if !relayErrorFatal(neg.State()) {
				conn.Log.WithField("error", msg).Debug("ignoring relay error after connect")
				continue
			}
			return fmt.Errorf("relay error: %s", msg)

		case <-neg.Ready():
			spinner.UpdateMessage("Connected, waiting for payload...")

		case res := <-results:
			if res.err != nil {
				return describeReceiveError(res.err)
			}
			spinner.Stop()
			printReceiveSummary(code, res.id, started)
			return nil

		case update := <-neg.Updates():
			switch update.State {
			case negotiator.StateFailed:
				return update.Err
			case negotiator.StateClosed:
				if id, ok := receiver.Imported(); ok {
					spinner.Stop()
					printReceiveSummary(code, id, started)
					return nil
				}
				err := fmt.Errorf("connection closed before the transfer completed")
				if !messageSeen.Load() {
					return err
				}
				return finishPendingImport(results, spinner, code, started, err)
			}
		}
	}
}

// finishPendingImport gives an in-flight import a short grace period
// after the sender disappears; the payload may already be in the stash
// service's hands.
func finishPendingImport(results <-chan receiveResult, spinner *ui.Spinner, code string, started time.Time, fallback error) error {
	select {
	case res := <-results:
		if res.err != nil {
			return describeReceiveError(res.err)
		}
		spinner.Stop()
		printReceiveSummary(code, res.id, started)
		return nil
	case <-time.After(10 * time.Second):
		return fallback
	}
}

// describeReceiveError words transfer failures for the user without
// losing the underlying cause.
func describeReceiveError(err error) error {
	switch {
	case errors.Is(err, transfer.ErrCorruptTransfer):
		return fmt.Errorf("the received data was corrupt; ask the sender to share again: %w", err)
	case errors.Is(err, transfer.ErrImportRejected):
		return fmt.Errorf("the stash service refused the payload: %w", err)
	default:
		return err
	}
}

func printReceiveSummary(code, stashID string, started time.Time) {
	ui.PrintSuccessf("Stash imported as %s %s", stashID, ui.IconComplete)
	ui.RenderSessionSummary(ui.SessionSummary{
		Status:   "Received",
		Code:     code,
		StashID:  stashID,
		Size:     "-",
		Duration: time.Since(started).Round(time.Millisecond).String(),
	})
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().String("relay-url", "", "Relay WebSocket URL")
	receiveCmd.Flags().String("stash-url", "", "Stash service base URL")
	receiveCmd.Flags().String("stash-token", "", "Stash service API token")
	receiveCmd.Flags().StringSlice("stun", nil, "STUN server URLs")
	receiveCmd.Flags().Duration("peer-wait", 0, "How long to wait for the sender before giving up")
	receiveCmd.Flags().String("log", "", "Log level (debug, info, warn, error)")
}
