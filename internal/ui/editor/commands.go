package editor

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Laloops/tramagrid/internal/command"
	"github.com/Laloops/tramagrid/internal/config"
	"github.com/Laloops/tramagrid/internal/log"
	"github.com/Laloops/tramagrid/internal/readers"
	"github.com/Laloops/tramagrid/internal/session"
)

// stateLoadedMsg carries one full re-read of the derived state.
type stateLoadedMsg struct {
	palette  []readers.PaletteEntry
	params   readers.Params
	clusters []readers.Cluster
	gridSize int
	err      error
}

// pixelLoadedMsg answers a cursor query. Stale answers are dropped by
// comparing the coordinates with the current cursor.
type pixelLoadedMsg struct {
	x, y  int
	index int
	err   error
}

// commandDoneMsg reports a dispatched command.
type commandDoneMsg struct {
	label    string
	simplify bool
	res      *command.Result
	err      error
}

// actionDoneMsg reports an app-level action that is not a single command.
type actionDoneMsg struct {
	label string
	err   error
}

// loadState re-reads palette, params, clusters and the grid image. The
// first error is reported; the other values are still filled in.
func (m Model) loadState() tea.Cmd {
	rd := m.services.App.Readers
	ctx := m.ctx
	return func() tea.Msg {
		var msg stateLoadedMsg
		keep := func(err error) {
			if err != nil && msg.err == nil && !errors.Is(err, session.ErrNoSession) {
				msg.err = err
			}
		}
		var err error
		msg.palette, err = rd.GetPalette(ctx)
		keep(err)
		msg.params, err = rd.GetParams(ctx)
		keep(err)
		msg.clusters, err = rd.GetColorClusters(ctx)
		keep(err)
		grid, err := rd.GetGridImage(ctx)
		keep(err)
		msg.gridSize = len(grid)
		return msg
	}
}

func (m Model) loadPixel() tea.Cmd {
	rd := m.services.App.Readers
	ctx, x, y := m.ctx, m.cursorX, m.cursorY
	return func() tea.Msg {
		idx, err := rd.GetPixelIndex(ctx, x, y)
		if errors.Is(err, session.ErrNoSession) {
			err = nil
		}
		return pixelLoadedMsg{x: x, y: y, index: idx, err: err}
	}
}

// run dispatches one command off the update loop.
func (m Model) run(label string, fn func(context.Context) (*command.Result, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		res, err := fn(ctx)
		return commandDoneMsg{label: label, res: res, err: err}
	}
}

func (m Model) runSimplify(label string, fn func(context.Context) (*command.Result, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		res, err := fn(ctx)
		return commandDoneMsg{label: label, simplify: true, res: res, err: err}
	}
}

// resimplify undoes the previous simplify and applies level instead, so
// lowering the level brings colors back.
func (m Model) resimplify(level int) tea.Cmd {
	d := m.services.App.Dispatcher
	label := fmt.Sprintf("Simplify %d%%", level)
	return m.runSimplify(label, func(ctx context.Context) (*command.Result, error) {
		res, err := d.UndoLastAction(ctx)
		if err != nil || level == 0 {
			return res, err
		}
		return d.SimplifyPalette(ctx, level)
	})
}

func (m Model) reload() tea.Cmd {
	a, path, ctx := m.services.App, m.services.ImagePath, m.ctx
	return func() tea.Msg {
		if path == "" {
			return actionDoneMsg{label: "Reload", err: errors.New("no source image")}
		}
		return actionDoneMsg{label: "Reloaded " + path, err: a.Reupload(ctx, path)}
	}
}

// saveGeneration persists the backend's current generation params.
func (m Model) saveGeneration() tea.Cmd {
	path := m.services.ConfigPath
	g := m.services.App.Config.Generation
	if v, ok := intParam(m.params, "max_colors"); ok {
		g.MaxColors = v
	}
	if v, ok := intParam(m.params, "grid_width_cells"); ok {
		g.GridWidthCells = v
	}
	if v, ok := floatParam(m.params, "brightness"); ok {
		g.Brightness = v
	}
	if v, ok := floatParam(m.params, "contrast"); ok {
		g.Contrast = v
	}
	if v, ok := floatParam(m.params, "zoom"); ok {
		g.Zoom = v
	}
	return func() tea.Msg {
		if path == "" {
			return actionDoneMsg{label: "Save", err: errors.New("no config file")}
		}
		if err := config.SaveGeneration(path, g); err != nil {
			return actionDoneMsg{label: "Save", err: err}
		}
		log.Info(log.CatUI, "generation settings saved", "path", path)
		return actionDoneMsg{label: "Settings saved"}
	}
}

func floatParam(p readers.Params, key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func intParam(p readers.Params, key string) (int, bool) {
	f, ok := floatParam(p, key)
	return int(f), ok
}
