package system

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Tool maps a command name used in steps to the executable actually run,
// e.g. "python" to "python3 -u" or "judge" to a wrapper script.
type Tool struct {
	Name        string            `yaml:"name" json:"name" toml:"name"`
	Command     string            `yaml:"command" json:"command" toml:"command"`
	Args        []string          `yaml:"args" json:"args" toml:"args"`
	Environment map[string]string `yaml:"env" json:"env" toml:"env"`
	Description string            `yaml:"description" json:"description" toml:"description"`
}

// ToolsFile is the structure of tools.yaml.
type ToolsFile struct {
	Tools []Tool `yaml:"tools" json:"tools" toml:"tools"`
}

// LoadTools reads a tools file (YAML, JSON or TOML) keyed by tool name.
// A missing file yields an empty map.
func LoadTools(path string) (map[string]Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Tool{}, nil
		}
		return nil, fmt.Errorf("failed to read tools config: %w", err)
	}

	var cfg ToolsFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	tools := make(map[string]Tool)
	for _, t := range cfg.Tools {
		if t.Name == "" || t.Command == "" {
			continue
		}
		tools[t.Name] = t
	}
	return tools, nil
}
