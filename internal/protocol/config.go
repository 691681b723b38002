package protocol

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/shlex"
)

// ToolConfig describes how to launch the external tool process. Command
// may be a full shell-style string ("uvx mcp-atlassian --transport stdio"),
// in which case it is split and Args must be empty.
type ToolConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// LoadToolConfig reads and validates the tool launch configuration.
func LoadToolConfig(path string) (*ToolConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool config %s: %w", path, err)
	}

	var cfg ToolConfig
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse tool config %s: %w", path, err)
	}

	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("tool config %s: command is empty", path)
	}

	if len(cfg.Args) == 0 && strings.ContainsAny(cfg.Command, " \t") {
		parts, err := shlex.Split(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("split tool command %q: %w", cfg.Command, err)
		}
		cfg.Command = parts[0]
		cfg.Args = parts[1:]
	}

	return &cfg, nil
}
