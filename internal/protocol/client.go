package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	prepdErrors "github.com/prepdhq/prepd/internal/errors"
)

const protocolVersion = "2024-11-05"

// Client owns one long-lived external tool process and exchanges
// correlated JSON-RPC requests with it over stdin/stdout. Exactly one
// call may be in flight at a time: the process is addressed over a single
// byte stream with no interleaving. When the process dies the handle is
// torn down and the next call restarts it transparently.
type Client struct {
	configPath     string
	startupTimeout time.Duration

	mu     sync.Mutex
	cfg    *ToolConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	exited chan struct{}
	ready  bool
	nextID int64
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type callToolResult struct {
	Content []toolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewClient builds a client for the tool described at configPath. The
// process is not started until the first call.
func NewClient(configPath string, startupTimeout time.Duration) *Client {
	return &Client{
		configPath:     configPath,
		startupTimeout: startupTimeout,
	}
}

// ReloadConfig re-reads the tool configuration and tears down any running
// process so the next call starts fresh. This is the only trigger for
// re-reading the config file.
func (c *Client) ReloadConfig() error {
	cfg, err := LoadToolConfig(c.configPath)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.teardownLocked()
	return nil
}

// Close stops the tool process if one is running.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

// Ready reports whether a handshaked process is currently up.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready && c.aliveLocked()
}

// CallTool invokes a named tool on the external process and returns the
// unwrapped result payload. The call is serialized against all other
// calls and bounded by timeout.
func (c *Client) CallTool(ctx context.Context, toolName string, arguments map[string]interface{}, timeout time.Duration) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureStartedLocked(ctx); err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"name":      toolName,
		"arguments": arguments,
	}

	resp, err := c.roundTripLocked(ctx, "tools/call", params, timeout)
	if err != nil {
		return nil, err
	}

	var result callToolResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, prepdErrors.WrapWithCategory(err, "decode tool result", prepdErrors.ErrProtocolCall)
	}
	if result.IsError {
		return nil, prepdErrors.ProtocolCall(fmt.Sprintf("tool %s: %s", toolName, firstText(result.Content)))
	}

	text := firstText(result.Content)
	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}

	// Plain-text payloads are re-encoded so callers always get JSON.
	encoded, err := json.Marshal(text)
	if err != nil {
		return nil, prepdErrors.WrapWithCategory(err, "encode tool text", prepdErrors.ErrProtocolCall)
	}
	return encoded, nil
}

func firstText(content []toolContent) string {
	for _, c := range content {
		if c.Text != "" {
			return c.Text
		}
	}
	return ""
}

// ensureStartedLocked is idempotent: if a handshaked process is alive it
// is a no-op, otherwise any dead handle is reaped and a fresh process is
// spawned and handshaked.
func (c *Client) ensureStartedLocked(ctx context.Context) error {
	if c.ready && c.aliveLocked() {
		return nil
	}
	c.teardownLocked()

	if c.cfg == nil {
		cfg, err := LoadToolConfig(c.configPath)
		if err != nil {
			return prepdErrors.WrapWithCategory(err, "load tool config", prepdErrors.ErrProtocolStartup)
		}
		c.cfg = cfg
	}

	cmd := exec.Command(c.cfg.Command, c.cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range c.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return prepdErrors.WrapWithCategory(err, "stdin pipe", prepdErrors.ErrProtocolStartup)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return prepdErrors.WrapWithCategory(err, "stdout pipe", prepdErrors.ErrProtocolStartup)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		return prepdErrors.WrapWithCategory(err, "stderr pipe", prepdErrors.ErrProtocolStartup)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return prepdErrors.WrapWithCategory(err, "start tool process", prepdErrors.ErrProtocolStartup)
	}

	slog.Info("Tool process started", "command", c.cfg.Command, "pid", cmd.Process.Pid)

	c.cmd = cmd
	c.stdin = stdin
	c.lines = make(chan string, 64)
	c.exited = make(chan struct{})

	go c.readLines(stdout, c.lines)
	go drainStderr(stderr)
	go func(cmd *exec.Cmd, exited chan struct{}) {
		cmd.Wait()
		close(exited)
	}(cmd, c.exited)

	if err := c.handshakeLocked(ctx); err != nil {
		c.teardownLocked()
		return err
	}

	c.ready = true
	return nil
}

func (c *Client) handshakeLocked(ctx context.Context) error {
	params := map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    "prepd",
			"version": "1.0.0",
		},
	}

	if _, err := c.roundTripLocked(ctx, "initialize", params, c.startupTimeout); err != nil {
		return prepdErrors.WrapWithCategory(err, "initialize handshake", prepdErrors.ErrProtocolStartup)
	}

	return c.writeLocked(rpcRequest{JSONRPC: "2.0", Method: "notifications/initialized"})
}

// roundTripLocked writes one framed request and scans output lines until a
// response bearing the matching id arrives or the timeout elapses.
// Non-protocol chatter and responses to abandoned earlier calls are
// skipped.
func (c *Client) roundTripLocked(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	c.nextID++
	id := c.nextID

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := c.writeLocked(req); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				c.teardownLocked()
				return nil, prepdErrors.ProtocolCall("tool process closed its output stream")
			}

			payload, found := ExtractJSON(line)
			if !found {
				slog.Debug("Skipping non-protocol output", "line", line)
				continue
			}

			var resp rpcResponse
			if err := json.Unmarshal([]byte(payload), &resp); err != nil {
				slog.Debug("Skipping unparseable output", "line", line, "error", err)
				continue
			}
			if resp.ID != id {
				continue
			}
			if resp.Error != nil {
				return nil, prepdErrors.ProtocolCall(fmt.Sprintf("%s: %s (code %d)", method, resp.Error.Message, resp.Error.Code))
			}
			return resp.Result, nil

		case <-timer.C:
			return nil, prepdErrors.ProtocolTimeout(fmt.Sprintf("%s after %v", method, timeout))

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) writeLocked(req rpcRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return prepdErrors.WrapWithCategory(err, "marshal request", prepdErrors.ErrProtocolCall)
	}

	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		c.teardownLocked()
		return prepdErrors.WrapWithCategory(err, "write request", prepdErrors.ErrProtocolCall)
	}
	return nil
}

func (c *Client) readLines(r io.Reader, out chan<- string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 8<<20)
	for scanner.Scan() {
		out <- scanner.Text()
	}
	close(out)
}

func drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		slog.Debug("Tool process stderr", "line", scanner.Text())
	}
}

func (c *Client) aliveLocked() bool {
	if c.cmd == nil {
		return false
	}
	select {
	case <-c.exited:
		return false
	default:
		return true
	}
}

func (c *Client) teardownLocked() {
	if c.cmd == nil {
		c.ready = false
		return
	}

	if c.stdin != nil {
		c.stdin.Close()
	}
	if c.aliveLocked() {
		c.cmd.Process.Kill()
	}

	select {
	case <-c.exited:
	case <-time.After(2 * time.Second):
		slog.Warn("Tool process did not exit after kill", "pid", c.cmd.Process.Pid)
	}

	c.cmd = nil
	c.stdin = nil
	c.lines = nil
	c.exited = nil
	c.ready = false
}
