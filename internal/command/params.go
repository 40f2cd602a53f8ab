package command

// Params is the free-form record sent to the params route.
type Params map[string]any

// GridParams are the generation parameters the backend understands. Nil
// fields are left unchanged on the backend.
type GridParams struct {
	MaxColors      *int     `json:"max_colors,omitempty" mapstructure:"max_colors"`
	GridWidthCells *int     `json:"grid_width_cells,omitempty" mapstructure:"grid_width_cells"`
	Brightness     *float64 `json:"brightness,omitempty" mapstructure:"brightness"`
	Contrast       *float64 `json:"contrast,omitempty" mapstructure:"contrast"`
	Zoom           *float64 `json:"zoom,omitempty" mapstructure:"zoom"`
	HighlightedRow *int     `json:"highlighted_row,omitempty" mapstructure:"highlighted_row"`
}

// AsParams returns only the fields that are set.
func (p GridParams) AsParams() Params {
	out := Params{}
	if p.MaxColors != nil {
		out["max_colors"] = *p.MaxColors
	}
	if p.GridWidthCells != nil {
		out["grid_width_cells"] = *p.GridWidthCells
	}
	if p.Brightness != nil {
		out["brightness"] = *p.Brightness
	}
	if p.Contrast != nil {
		out["contrast"] = *p.Contrast
	}
	if p.Zoom != nil {
		out["zoom"] = *p.Zoom
	}
	if p.HighlightedRow != nil {
		out["highlighted_row"] = *p.HighlightedRow
	}
	return out
}

// IsZero reports whether no field is set.
func (p GridParams) IsZero() bool {
	return len(p.AsParams()) == 0
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
