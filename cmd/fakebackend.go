package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Laloops/tramagrid/internal/config"
	"github.com/Laloops/tramagrid/internal/fakebackend"
	"github.com/Laloops/tramagrid/internal/tracing"
)

var fakeBackendCmd = &cobra.Command{
	Use:   "fake-backend",
	Short: "Serve an in-memory grid backend",
	Long: `Serve the grid backend HTTP API from memory. Sessions are lost on exit.
Useful for trying the editor without the real backend.

Example:
  tramagrid fake-backend --addr :8000`,
	Args: cobra.NoArgs,
	RunE: runFakeBackend,
}

var fakeBackendAddr string

func init() {
	rootCmd.AddCommand(fakeBackendCmd)
	fakeBackendCmd.Flags().StringVar(&fakeBackendAddr, "addr", "", "listen address (overrides backend.addr)")
}

func runFakeBackend(cmd *cobra.Command, _ []string) error {
	cleanup, err := setupLogging("tramagrid-backend", false)
	if err != nil {
		return err
	}
	defer cleanup()

	addr := fakeBackendAddr
	if addr == "" {
		addr = cfg.Backend.Addr
	}

	tc := cfg.Tracing
	if tc.Enabled && tc.Exporter == "file" && tc.FilePath == "" {
		tc.FilePath = config.DefaultTracesFilePath()
	}
	provider, err := tracing.NewProvider(tc)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	srv := fakebackend.New(
		fakebackend.WithAllowedOrigins(cfg.Backend.AllowedOrigins),
		fakebackend.WithTracer(provider.Tracer()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "fake backend listening on %s\n", addr)
	return fakebackend.ListenAndServe(ctx, addr, srv)
}
