package protocol

import (
	"os"
	"path/filepath"
	"testing"
)

func writeToolConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadToolConfigExplicitArgs(t *testing.T) {
	path := writeToolConfig(t, `{"command":"uvx","args":["mcp-atlassian","--transport","stdio"],"env":{"JIRA_URL":"https://jira.example.com"}}`)

	cfg, err := LoadToolConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Command != "uvx" {
		t.Errorf("command = %q", cfg.Command)
	}
	if len(cfg.Args) != 3 || cfg.Args[0] != "mcp-atlassian" {
		t.Errorf("args = %v", cfg.Args)
	}
	if cfg.Env["JIRA_URL"] != "https://jira.example.com" {
		t.Errorf("env = %v", cfg.Env)
	}
}

func TestLoadToolConfigSplitsShellStyleCommand(t *testing.T) {
	path := writeToolConfig(t, `{"command":"uvx mcp-atlassian --transport stdio"}`)

	cfg, err := LoadToolConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Command != "uvx" {
		t.Errorf("command = %q, want uvx", cfg.Command)
	}
	if len(cfg.Args) != 3 {
		t.Errorf("args = %v", cfg.Args)
	}
}

func TestLoadToolConfigQuotedArgument(t *testing.T) {
	path := writeToolConfig(t, `{"command":"run-tool --name \"my tool\""}`)

	cfg, err := LoadToolConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Args) != 2 || cfg.Args[1] != "my tool" {
		t.Errorf("args = %v, want quoted argument kept whole", cfg.Args)
	}
}

func TestLoadToolConfigRejectsEmptyCommand(t *testing.T) {
	path := writeToolConfig(t, `{"command":"  "}`)
	if _, err := LoadToolConfig(path); err == nil {
		t.Error("blank command should be rejected")
	}
}

func TestLoadToolConfigMissingFile(t *testing.T) {
	if _, err := LoadToolConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("missing file should be an error")
	}
}
