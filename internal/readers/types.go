package readers

import (
	"encoding/json"
	"fmt"
)

// PaletteEntry is one color of the current palette snapshot. Index is only
// meaningful until the next mutation.
type PaletteEntry struct {
	Index int    `json:"index"`
	Hex   string `json:"hex"`
	Count int    `json:"count"`
}

// Params is the backend's generation parameter record.
type Params map[string]any

// Cluster is a server-suggested group of palette indices that could be
// merged. Suggestions are informational and never applied automatically.
type Cluster struct {
	Indices []int   `json:"indices"`
	Hex     string  `json:"hex,omitempty"`
	Spread  float64 `json:"spread,omitempty"`
}

// UnmarshalJSON accepts either a bare index array or an object.
func (c *Cluster) UnmarshalJSON(data []byte) error {
	var indices []int
	if err := json.Unmarshal(data, &indices); err == nil {
		*c = Cluster{Indices: indices}
		return nil
	}

	type plain Cluster
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("cluster: %w", err)
	}
	*c = Cluster(p)
	return nil
}
