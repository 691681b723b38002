package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/prepdhq/prepd/internal/calendar"
	"github.com/prepdhq/prepd/internal/config"
	"github.com/prepdhq/prepd/internal/daemon"
	"github.com/prepdhq/prepd/internal/daemon/components"
)

func integrationConfig(t *testing.T, port int) *config.Config {
	t.Helper()
	dataPath := t.TempDir()

	return &config.Config{
		Server: config.ServerConfig{
			Port:     port,
			LogLevel: "error",
		},
		Daemon: config.DaemonConfig{
			DataPath:        dataPath,
			ShutdownTimeout: "5s",
		},
		Protocol: config.ProtocolConfig{
			ConfigPath: filepath.Join(dataPath, "tool.json"),
		},
		Summarizer: config.SummarizerConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			APIKey:   "test-key",
		},
		Prompts: config.PromptsConfig{
			OverridesPath: filepath.Join(dataPath, "prompts.json"),
		},
	}
}

func TestDaemonFullLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := integrationConfig(t, 18321)

	d, err := daemon.NewDaemon(cfg)
	if err != nil {
		t.Fatal(err)
	}

	cal := calendar.NewFileCalendar(filepath.Join(cfg.Daemon.DataPath, "meetings.json"))
	cacheComp := components.NewCacheComponent(cfg)
	protocolComp := components.NewProtocolComponent(cfg)
	prefetchComp := components.NewPrefetchComponent(cfg, cacheComp, protocolComp, cal, nil, nil)
	httpComp := components.NewHTTPServerComponent(d, &cfg.Server, cacheComp, prefetchComp, protocolComp)

	d.AddComponent(cacheComp)
	d.AddComponent(protocolComp)
	d.AddComponent(prefetchComp)
	d.AddComponent(httpComp)

	ctx, cancel := context.WithCancel(context.Background())
	daemonDone := make(chan error, 1)
	go func() {
		daemonDone <- d.Start(ctx)
	}()

	baseURL := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	client := &http.Client{Timeout: time.Second}

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = client.Get(baseURL + "/health")
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("daemon never became reachable: %v", err)
	}
	defer resp.Body.Close()

	var health struct {
		Status     string                    `json:"status"`
		Components map[string]map[string]any `json:"components"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != string(daemon.StatusRunning) {
		t.Errorf("status = %s, want running", health.Status)
	}
	for _, name := range []string{"PrepCache", "Protocol", "Prefetch", "HTTPServer"} {
		comp, ok := health.Components[name]
		if !ok {
			t.Errorf("health response missing component %s", name)
			continue
		}
		if healthy, _ := comp["healthy"].(bool); !healthy {
			t.Errorf("component %s unhealthy: %v", name, comp)
		}
	}

	statusResp, err := client.Get(baseURL + "/api/prefetch/status")
	if err != nil {
		t.Fatal(err)
	}
	defer statusResp.Body.Close()
	if statusResp.StatusCode != http.StatusOK {
		t.Errorf("prefetch status = %s", statusResp.Status)
	}

	refreshResp, err := client.Post(baseURL+"/api/prefetch/refresh", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer refreshResp.Body.Close()
	if refreshResp.StatusCode != http.StatusAccepted {
		t.Errorf("refresh = %s, want 202", refreshResp.Status)
	}

	cancel()

	select {
	case err := <-daemonDone:
		if err != nil && err != context.Canceled {
			t.Errorf("daemon exited with %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not shut down in time")
	}
}
