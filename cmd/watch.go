package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch IMAGE",
	Short: "Regenerate the grid whenever IMAGE changes",
	Long: `Open IMAGE in a new session and re-upload it each time the file is
saved, printing the palette after every refresh. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cleanup, err := setupLogging("tramagrid-watch", false)
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := args[0]
	out := cmd.OutOrStdout()
	if err := a.Open(ctx, path); err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	show := func() {
		palette, err := a.Readers.GetPalette(ctx)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "palette: %v\n", err)
			return
		}
		printPalette(out, palette)
	}
	show()

	_, err = a.WatchSource(ctx, path, func(err error) {
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "reload failed: %v\n", err)
			return
		}
		fmt.Fprintf(out, "%s changed\n", path)
		show()
	})
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	fmt.Fprintf(out, "watching %s (session %s), Ctrl+C to stop\n", path, a.Session.ID())
	<-ctx.Done()
	return nil
}
