package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/Laloops/tramagrid/internal/log"
)

// SaveGeneration replaces the generation section of the config file,
// keeping every other section and its comments.
func SaveGeneration(configPath string, g GenerationConfig) error {
	if err := ValidateGeneration(g); err != nil {
		return err
	}
	if err := saveSection(configPath, "generation", buildGenerationNode(g)); err != nil {
		return err
	}
	log.Info(log.CatConfig, "saved generation params", "path", configPath)
	return nil
}

func buildGenerationNode(g GenerationConfig) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key, value, tag string) {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: value, Tag: tag},
		)
	}
	add("max_colors", strconv.Itoa(g.MaxColors), "!!int")
	add("grid_width_cells", strconv.Itoa(g.GridWidthCells), "!!int")
	add("brightness", formatFloat(g.Brightness), "!!float")
	add("contrast", formatFloat(g.Contrast), "!!float")
	add("zoom", formatFloat(g.Zoom), "!!float")
	return node
}

// formatFloat always keeps a decimal point so the value reads back as a float.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !bytes.ContainsAny([]byte(s), ".eE") {
		s += ".0"
	}
	return s
}

// saveSection sets key in the top-level mapping of the YAML file to value,
// creating the file when missing, and writes atomically.
func saveSection(configPath, key string, value *yaml.Node) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // G304: config path chosen by the user
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	if doc.Kind == 0 || len(doc.Content) == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode}},
		}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("parsing config: top level is not a mapping")
	}

	found := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			// Keep the comments attached to the old value.
			value.HeadComment = root.Content[i+1].HeadComment
			value.LineComment = root.Content[i+1].LineComment
			root.Content[i+1] = value
			found = true
			break
		}
	}
	if !found {
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, value)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = enc.Close()

	return writeAtomic(configPath, buf.Bytes())
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".tramagrid.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
