package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Laloops/tramagrid/internal/log"
	"github.com/Laloops/tramagrid/internal/ui/editor"
)

var editCmd = &cobra.Command{
	Use:   "edit IMAGE",
	Short: "Open IMAGE in the interactive palette editor",
	Long: `Create a backend session, upload IMAGE, generate the grid and open the
palette editor. With --watch the image is re-uploaded whenever it changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

var editWatch bool

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().BoolVarP(&editWatch, "watch", "w", false, "re-upload IMAGE when it changes")
}

func runEdit(_ *cobra.Command, args []string) error {
	cleanup, err := setupLogging("tramagrid", true)
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := args[0]
	if err := a.Open(ctx, path); err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if editWatch {
		if _, err := a.WatchSource(ctx, path, nil); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
	}

	model := editor.New(editor.Services{App: a, ImagePath: path, ConfigPath: configPath()})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running editor: %w", err)
	}
	log.Info(log.CatUI, "editor closed", "session", a.Session.ID())
	return nil
}
