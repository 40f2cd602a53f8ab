package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Laloops/tramagrid/internal/app"
	"github.com/Laloops/tramagrid/internal/readers"
	"github.com/Laloops/tramagrid/internal/ui/styles"
)

var renderCmd = &cobra.Command{
	Use:   "render IMAGE",
	Short: "Generate the grid for IMAGE and write it as PNG",
	Long: `Run the whole pipeline without the editor: create a session, upload IMAGE,
generate the grid, optionally simplify it, then write the grid image and
print the palette.

Example:
  tramagrid render cat.png --out cat-grid.png --max-colors 24 --simplify 30`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var (
	renderOut       string
	renderMaxColors int
	renderSimplify  int
	renderBW        bool
)

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "grid.png", "output PNG path")
	renderCmd.Flags().IntVar(&renderMaxColors, "max-colors", 0, "palette size (overrides generation.max_colors)")
	renderCmd.Flags().IntVar(&renderSimplify, "simplify", 0, "simplify intensity 0-100 after generation")
	renderCmd.Flags().BoolVar(&renderBW, "bw", false, "reduce to a black & white palette")
}

func runRender(cmd *cobra.Command, args []string) error {
	cleanup, err := setupLogging("tramagrid-render", false)
	if err != nil {
		return err
	}
	defer cleanup()

	c := cfg
	if renderMaxColors > 0 {
		c.Generation.MaxColors = renderMaxColors
	}
	a, err := newApp(c)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := context.Background()
	if err := a.Open(ctx, args[0]); err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	if renderSimplify > 0 {
		if _, err := a.Dispatcher.SimplifyPalette(ctx, renderSimplify); err != nil {
			return err
		}
	}
	if renderBW {
		if _, err := a.Dispatcher.SimplifyBW(ctx); err != nil {
			return err
		}
	}

	if err := writeGrid(ctx, a, renderOut); err != nil {
		return err
	}
	palette, err := a.Readers.GetPalette(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "wrote %s\n", renderOut)
	printPalette(out, palette)
	return nil
}

func writeGrid(ctx context.Context, a *app.App, path string) error {
	url, err := a.Readers.GetGridImage(ctx)
	if err != nil {
		return err
	}
	data, err := readers.DecodeDataURL(url)
	if err != nil {
		return fmt.Errorf("grid image: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// printPalette writes one row per color with a swatch.
func printPalette(w io.Writer, palette []readers.PaletteEntry) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.BorderDefaultColor)).
		Headers("#", "", "HEX", "CELLS")
	for _, e := range palette {
		t.Row(strconv.Itoa(e.Index), styles.Swatch(e.Hex, 2), e.Hex, strconv.Itoa(e.Count))
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d colors\n", len(palette))
}
