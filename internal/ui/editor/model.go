// Package editor implements the interactive palette editor.
package editor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Laloops/tramagrid/internal/app"
	"github.com/Laloops/tramagrid/internal/command"
	"github.com/Laloops/tramagrid/internal/keys"
	"github.com/Laloops/tramagrid/internal/log"
	"github.com/Laloops/tramagrid/internal/pubsub"
	"github.com/Laloops/tramagrid/internal/readers"
	"github.com/Laloops/tramagrid/internal/refresh"
	"github.com/Laloops/tramagrid/internal/session"
	"github.com/Laloops/tramagrid/internal/ui/logpanel"
	"github.com/Laloops/tramagrid/internal/ui/toaster"
)

const (
	toastDuration = 3 * time.Second
	zoomFactor    = 1.25
	minZoom       = 0.4
	maxZoom       = 8.0
)

// Services are the dependencies of the editor.
type Services struct {
	App *app.App
	// ImagePath is re-uploaded on reload. Empty disables reload.
	ImagePath string
	// ConfigPath receives saved generation settings. Empty disables saving.
	ConfigPath string
}

// Model is the editor state. Derived state is never edited locally: every
// change goes through a command and is re-read after the refresh event.
type Model struct {
	services Services
	ctx      context.Context
	cancel   context.CancelFunc

	refreshes *pubsub.ContinuousListener[refresh.StateInvalidated]
	logs      *log.LogListener

	palette  []readers.PaletteEntry
	params   readers.Params
	clusters []readers.Cluster
	gridSize int

	selected int
	cursorX  int
	cursorY  int
	pixel    int

	// simplifyLevel is the last intensity sent; lastSimplify is set while
	// the most recent applied command was a simplify.
	simplifyLevel int
	lastSimplify  bool

	prompt       textinput.Model
	prompting    bool
	showHelp     bool
	showClusters bool

	toaster  toaster.Model
	logPanel logpanel.Model
	help     help.Model

	loading bool
	err     error
	width   int
	height  int
}

// New creates the editor. The refresh subscription lives until Close.
func New(services Services) Model {
	ctx, cancel := context.WithCancel(context.Background())

	prompt := textinput.New()
	prompt.Placeholder = "#rrggbb"
	prompt.CharLimit = 7
	prompt.Prompt = "new color: "

	panel := logpanel.New(0)
	if services.App.Config.Editor.ShowLog {
		panel.Toggle()
	}

	return Model{
		services:     services,
		ctx:          ctx,
		cancel:       cancel,
		refreshes:    services.App.Bus.Listener(ctx),
		logs:         log.NewListener(ctx),
		pixel:        readers.NoPixel,
		prompt:       prompt,
		showClusters: true,
		toaster:      toaster.New(),
		logPanel:     panel,
		help:         help.New(),
		loading:      true,
	}
}

// Init starts listening for refreshes and log lines and loads the state.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.refreshes.Listen(), m.loadState(), m.loadPixel()}
	if m.logs != nil {
		cmds = append(cmds, m.logs.Listen())
	}
	return tea.Batch(cmds...)
}

// Close ends the subscriptions.
func (m Model) Close() {
	m.cancel()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.logPanel.SetSize(msg.Width, msg.Height)
		return m, nil

	case refresh.Event:
		log.Debug(log.CatUI, "state invalidated", "command", msg.Payload.Command)
		m.loading = true
		return m, tea.Batch(m.loadState(), m.loadPixel(), m.refreshes.Listen())

	case log.LogEvent:
		m.logPanel.Append(msg.Payload)
		if m.logs == nil {
			return m, nil
		}
		return m, m.logs.Listen()

	case stateLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.palette = msg.palette
		m.params = msg.params
		m.clusters = msg.clusters
		m.gridSize = msg.gridSize
		m.selected = clampIndex(m.selected, len(m.palette))
		return m, nil

	case pixelLoadedMsg:
		if msg.x == m.cursorX && msg.y == m.cursorY {
			m.pixel = msg.index
		}
		return m, nil

	case commandDoneMsg:
		return m.commandDone(msg)

	case actionDoneMsg:
		if msg.err != nil {
			return m.toast(msg.err.Error(), toaster.StyleError)
		}
		return m.toast(msg.label, toaster.StyleSuccess)

	case toaster.DismissMsg:
		m.toaster = m.toaster.Update(msg)
		return m, nil

	case logpanel.CloseMsg:
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) commandDone(msg commandDoneMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.err == nil:
		m.lastSimplify = msg.simplify
		return m.toast(msg.label, toaster.StyleSuccess)
	case errors.Is(msg.err, session.ErrNoSession):
		return m.toast("No session yet", toaster.StyleWarn)
	case errors.Is(msg.err, command.ErrNoMergeSource):
		return m.toast("Pick a merge source with m first", toaster.StyleWarn)
	default:
		return m.toast(fmt.Sprintf("%s failed: %v", msg.label, msg.err), toaster.StyleError)
	}
}

func (m Model) toast(text string, style toaster.Style) (tea.Model, tea.Cmd) {
	m.toaster = m.toaster.Show(text, style)
	return m, m.toaster.Dismiss(toastDuration)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.Close()
		return m, tea.Quit
	}
	if m.logPanel.Visible() {
		var cmd tea.Cmd
		m.logPanel, cmd = m.logPanel.Update(msg)
		return m, cmd
	}
	if m.prompting {
		return m.handlePromptKey(msg)
	}

	k := keys.Editor
	d := m.services.App.Dispatcher
	h := m.services.App.Session

	switch {
	case key.Matches(msg, k.Quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, k.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil
	case key.Matches(msg, k.Escape):
		m.showHelp = false
		m.help.ShowAll = false
		h.ClearMergeSource()
		return m, nil
	case key.Matches(msg, k.Logs):
		m.logPanel.Toggle()
		return m, nil
	case key.Matches(msg, k.Clusters):
		m.showClusters = !m.showClusters
		return m, nil

	case key.Matches(msg, k.PaletteUp):
		m.selected = clampIndex(m.selected-1, len(m.palette))
		return m, nil
	case key.Matches(msg, k.PaletteDown):
		m.selected = clampIndex(m.selected+1, len(m.palette))
		return m, nil

	case key.Matches(msg, k.CursorUp):
		return m.moveCursor(0, -1)
	case key.Matches(msg, k.CursorDown):
		return m.moveCursor(0, 1)
	case key.Matches(msg, k.CursorLeft):
		return m.moveCursor(-1, 0)
	case key.Matches(msg, k.CursorRight):
		return m.moveCursor(1, 0)

	case key.Matches(msg, k.Paint):
		x, y := m.cursorX, m.cursorY
		return m, m.run("Painted", func(ctx context.Context) (*command.Result, error) {
			return d.PaintCell(ctx, x, y)
		})
	case key.Matches(msg, k.Undo):
		return m, m.run("Undone", d.UndoLastAction)
	case key.Matches(msg, k.SimplifyMore):
		return m.simplify(m.simplifyLevel + m.step())
	case key.Matches(msg, k.SimplifyLess):
		return m.simplify(m.simplifyLevel - m.step())
	case key.Matches(msg, k.BlackAndWhite):
		return m, m.run("Black & white", d.SimplifyBW)
	case key.Matches(msg, k.Regenerate):
		return m, m.run("Regenerated", d.GenerateGrid)
	case key.Matches(msg, k.ZoomIn):
		return m.zoom(zoomFactor)
	case key.Matches(msg, k.ZoomOut):
		return m.zoom(1 / zoomFactor)
	case key.Matches(msg, k.Highlight):
		row := m.cursorY + 1
		if cur, ok := intParam(m.params, "highlighted_row"); ok && cur == row {
			row = 0
		}
		return m, m.run("Row highlight", func(ctx context.Context) (*command.Result, error) {
			return d.UpdateGridParams(ctx, command.GridParams{HighlightedRow: command.Int(row)})
		})
	case key.Matches(msg, k.Reload):
		return m, m.reload()
	case key.Matches(msg, k.Save):
		return m, m.saveGeneration()
	}

	// The rest acts on the selected palette entry.
	entry, ok := m.selectedEntry()
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(msg, k.SetActive):
		h.SetActiveColorIndex(entry.Index)
		return m.toast("Painting with "+entry.Hex, toaster.StyleInfo)
	case key.Matches(msg, k.MergeSource):
		h.PickMergeSource(entry.Index)
		return m.toast("Merge from "+entry.Hex, toaster.StyleInfo)
	case key.Matches(msg, k.MergeInto):
		return m, m.run("Merged into "+entry.Hex, func(ctx context.Context) (*command.Result, error) {
			return d.CompleteMerge(ctx, entry.Index)
		})
	case key.Matches(msg, k.Delete):
		return m, m.run("Deleted "+entry.Hex, func(ctx context.Context) (*command.Result, error) {
			return d.DeleteColor(ctx, entry.Index)
		})
	case key.Matches(msg, k.Replace):
		m.prompting = true
		m.prompt.SetValue(entry.Hex)
		m.prompt.CursorEnd()
		return m, m.prompt.Focus()
	}
	return m, nil
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Prompt.Cancel):
		m.prompting = false
		m.prompt.Blur()
		return m, nil
	case key.Matches(msg, keys.Prompt.Confirm):
		m.prompting = false
		m.prompt.Blur()
		entry, ok := m.selectedEntry()
		if !ok {
			return m, nil
		}
		hex := m.prompt.Value()
		d := m.services.App.Dispatcher
		return m, m.run("Replaced "+entry.Hex, func(ctx context.Context) (*command.Result, error) {
			return d.ReplaceColor(ctx, entry.Index, hex)
		})
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m Model) moveCursor(dx, dy int) (tea.Model, tea.Cmd) {
	x, y := m.cursorX+dx, m.cursorY+dy
	if w, ok := intParam(m.params, "grid_width_cells"); ok && x >= w {
		x = w - 1
	}
	m.cursorX, m.cursorY = max(x, 0), max(y, 0)
	return m, m.loadPixel()
}

// simplify moves to level. Raising it simplifies further; lowering it
// replaces the previous simplify when that was the last change.
func (m Model) simplify(level int) (tea.Model, tea.Cmd) {
	level = min(max(level, 0), 100)
	if level == m.simplifyLevel {
		return m, nil
	}
	lower := level < m.simplifyLevel
	m.simplifyLevel = level
	if lower {
		if !m.lastSimplify {
			return m.toast(fmt.Sprintf("Simplify level %d%%", level), toaster.StyleInfo)
		}
		return m, m.resimplify(level)
	}
	d := m.services.App.Dispatcher
	return m, m.runSimplify(fmt.Sprintf("Simplify %d%%", level), func(ctx context.Context) (*command.Result, error) {
		return d.SimplifyPalette(ctx, level)
	})
}

func (m Model) zoom(factor float64) (tea.Model, tea.Cmd) {
	cur, ok := floatParam(m.params, "zoom")
	if !ok || cur <= 0 {
		cur = 1
	}
	next := min(max(cur*factor, minZoom), maxZoom)
	d := m.services.App.Dispatcher
	return m, m.run(fmt.Sprintf("Zoom %.2fx", next), func(ctx context.Context) (*command.Result, error) {
		return d.UpdateGridParams(ctx, command.GridParams{Zoom: command.Float(next)})
	})
}

func (m Model) step() int {
	if s := m.services.App.Config.Editor.SimplifyStep; s > 0 {
		return s
	}
	return 10
}

func (m Model) selectedEntry() (readers.PaletteEntry, bool) {
	if m.selected < 0 || m.selected >= len(m.palette) {
		return readers.PaletteEntry{}, false
	}
	return m.palette[m.selected], true
}

func clampIndex(i, n int) int {
	if n == 0 {
		return 0
	}
	return min(max(i, 0), n-1)
}
