// Package command turns editing intents into backend round trips.
//
// Each mutating operation is a Command carrying a snapshot of the session id
// and any editing state it depends on, taken when the command is built. The
// Dispatcher runs commands through a middleware chain that guards on the
// session, validates, sends one request and, only when that request succeeds,
// publishes a refresh event.
package command

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/Laloops/tramagrid/internal/api"
)

// Type identifies a command kind.
type Type string

const (
	TypeGenerateGrid         Type = "generate_grid"
	TypePaintCell            Type = "paint_cell"
	TypeUndo                 Type = "undo"
	TypeMergeColors          Type = "merge_colors"
	TypeUpdateParams         Type = "update_params"
	TypeReplaceColor         Type = "replace_color"
	TypeDeleteColor          Type = "delete_color"
	TypeSimplifyPalette      Type = "simplify_palette"
	TypeSimplifyBW           Type = "simplify_bw"
	TypeReplaceColorInRegion Type = "replace_color_in_region"
)

func (t Type) String() string { return string(t) }

var (
	// ErrInvalidHex is returned when a replacement color is not #RRGGBB.
	ErrInvalidHex = errors.New("color must be #RRGGBB")

	// ErrNoMergeSource is returned by CompleteMerge before a source is picked.
	ErrNoMergeSource = errors.New("no merge source selected")
)

// Command is one mutating request against the session.
type Command interface {
	ID() string
	Type() Type
	SessionID() string
	CreatedAt() time.Time
	Route() api.Route
	// Payload returns the JSON body, or nil for body-less routes.
	Payload() any
	Validate() error
}

// BaseCommand holds the fields shared by every command.
type BaseCommand struct {
	id        string
	cmdType   Type
	sessionID string
	createdAt time.Time
	route     api.Route
}

// NewBaseCommand stamps a new command with a UUID and the session it targets.
func NewBaseCommand(t Type, route api.Route, sessionID string) BaseCommand {
	return BaseCommand{
		id:        uuid.New().String(),
		cmdType:   t,
		sessionID: sessionID,
		createdAt: time.Now(),
		route:     route,
	}
}

func (b *BaseCommand) ID() string { return b.id }
func (b *BaseCommand) Type() Type { return b.cmdType }
func (b *BaseCommand) SessionID() string { return b.sessionID }
func (b *BaseCommand) CreatedAt() time.Time { return b.createdAt }
func (b *BaseCommand) Route() api.Route { return b.route }
func (b *BaseCommand) Payload() any { return nil }
func (b *BaseCommand) Validate() error { return nil }

// GenerateGrid asks the backend to (re)build the grid from the uploaded image.
type GenerateGrid struct {
	BaseCommand
}

func NewGenerateGrid(sessionID string) *GenerateGrid {
	return &GenerateGrid{BaseCommand: NewBaseCommand(TypeGenerateGrid, api.RouteGenerate, sessionID)}
}

// PaintCell paints one cell with the color that was active when it was built.
type PaintCell struct {
	BaseCommand
	X, Y       int
	ColorIndex int
}

func NewPaintCell(sessionID string, x, y, colorIndex int) *PaintCell {
	return &PaintCell{
		BaseCommand: NewBaseCommand(TypePaintCell, api.RoutePaint, sessionID),
		X:           x,
		Y:           y,
		ColorIndex:  colorIndex,
	}
}

func (c *PaintCell) Payload() any {
	return struct {
		X          int `json:"x"`
		Y          int `json:"y"`
		ColorIndex int `json:"color_index"`
	}{c.X, c.Y, c.ColorIndex}
}

// Undo reverts the last mutation on the backend.
type Undo struct {
	BaseCommand
}

func NewUndo(sessionID string) *Undo {
	return &Undo{BaseCommand: NewBaseCommand(TypeUndo, api.RouteUndo, sessionID)}
}

// MergeColors folds palette entry From into To.
type MergeColors struct {
	BaseCommand
	From, To int
}

func NewMergeColors(sessionID string, from, to int) *MergeColors {
	return &MergeColors{
		BaseCommand: NewBaseCommand(TypeMergeColors, api.RouteMerge, sessionID),
		From:        from,
		To:          to,
	}
}

func (c *MergeColors) Payload() any {
	return struct {
		FromIndex int `json:"from_index"`
		ToIndex   int `json:"to_index"`
	}{c.From, c.To}
}

// UpdateParams forwards a params record unchanged.
type UpdateParams struct {
	BaseCommand
	Params Params
}

func NewUpdateParams(sessionID string, params Params) *UpdateParams {
	return &UpdateParams{
		BaseCommand: NewBaseCommand(TypeUpdateParams, api.RouteUpdateParams, sessionID),
		Params:      params,
	}
}

func (c *UpdateParams) Payload() any {
	if c.Params == nil {
		return Params{}
	}
	return c.Params
}

// ReplaceColor recolors one palette entry.
type ReplaceColor struct {
	BaseCommand
	Index  int
	NewHex string
}

func NewReplaceColor(sessionID string, index int, newHex string) *ReplaceColor {
	return &ReplaceColor{
		BaseCommand: NewBaseCommand(TypeReplaceColor, api.RouteReplaceColor, sessionID),
		Index:       index,
		NewHex:      newHex,
	}
}

func (c *ReplaceColor) Payload() any {
	return struct {
		Index  int    `json:"index"`
		NewHex string `json:"new_hex"`
	}{c.Index, c.NewHex}
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func (c *ReplaceColor) Validate() error {
	if !hexColor.MatchString(c.NewHex) {
		return fmt.Errorf("%q: %w", c.NewHex, ErrInvalidHex)
	}
	return nil
}

// DeleteColor removes a palette entry; the backend remaps its cells.
type DeleteColor struct {
	BaseCommand
	Index int
}

func NewDeleteColor(sessionID string, index int) *DeleteColor {
	return &DeleteColor{
		BaseCommand: NewBaseCommand(TypeDeleteColor, api.RouteDeleteColor, sessionID),
		Index:       index,
	}
}

func (c *DeleteColor) Payload() any {
	return struct {
		Index int `json:"index"`
	}{c.Index}
}

// SimplifyPalette merges similar colors; higher intensity merges more.
type SimplifyPalette struct {
	BaseCommand
	Intensity int
}

func NewSimplifyPalette(sessionID string, intensity int) *SimplifyPalette {
	return &SimplifyPalette{
		BaseCommand: NewBaseCommand(TypeSimplifyPalette, api.RouteSimplify, sessionID),
		Intensity:   intensity,
	}
}

func (c *SimplifyPalette) Payload() any {
	return struct {
		Intensity int `json:"intensity"`
	}{c.Intensity}
}

// SimplifyBW lets the backend pick a simplification suited to the image's
// luminance range.
type SimplifyBW struct {
	BaseCommand
}

func NewSimplifyBW(sessionID string) *SimplifyBW {
	return &SimplifyBW{BaseCommand: NewBaseCommand(TypeSimplifyBW, api.RouteSimplifyBW, sessionID)}
}

// ReplaceColorInRegion swaps From for To inside a cell rectangle. The
// rectangle is not checked against the grid; the backend clips it.
type ReplaceColorInRegion struct {
	BaseCommand
	Region   Region
	From, To int
}

// Region is a rectangle in grid-cell coordinates.
type Region struct {
	X, Y, W, H int
}

func NewReplaceColorInRegion(sessionID string, r Region, from, to int) *ReplaceColorInRegion {
	return &ReplaceColorInRegion{
		BaseCommand: NewBaseCommand(TypeReplaceColorInRegion, api.RouteRegionReplace, sessionID),
		Region:      r,
		From:        from,
		To:          to,
	}
}

func (c *ReplaceColorInRegion) Payload() any {
	return struct {
		X         int `json:"x"`
		Y         int `json:"y"`
		W         int `json:"w"`
		H         int `json:"h"`
		FromIndex int `json:"from_index"`
		ToIndex   int `json:"to_index"`
	}{c.Region.X, c.Region.Y, c.Region.W, c.Region.H, c.From, c.To}
}
