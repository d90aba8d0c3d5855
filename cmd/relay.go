package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/irfan-khan-96/ruff-web/internal/config"
	"github.com/irfan-khan-96/ruff-web/internal/logging"
	"github.com/irfan-khan-96/ruff-web/internal/relay"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the signaling relay",
	Long: `Run the WebSocket relay that share sessions use to find each other
and exchange connection negotiation messages. The relay never sees
payload data, only signaling traffic.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelay(cmd)
	},
}

func runRelay(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel)

	hub := relay.NewHub(cfg.RoomTTL, logger)
	go hub.Run()
	defer hub.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", relay.ServeWs(hub, logger))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Signaling relay is healthy."))
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("relay listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
		logger.Info("shutting down relay")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().String("listen", "", "Address to listen on")
	relayCmd.Flags().Duration("room-ttl", 0, "Idle time before a room is reclaimed")
	relayCmd.Flags().String("log", "", "Log level (debug, info, warn, error)")
}
