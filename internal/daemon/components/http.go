package components

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prepdhq/prepd/internal/config"
	"github.com/prepdhq/prepd/internal/daemon"
	"github.com/prepdhq/prepd/internal/prepcache"
)

type HTTPServerComponent struct {
	daemon       *daemon.Daemon
	cfg          *config.ServerConfig
	cacheComp    *CacheComponent
	prefetchComp *PrefetchComponent
	protocolComp *ProtocolComponent
	server       *http.Server
	shutdownTTL  time.Duration
	initialized  bool
	started      bool
	mu           sync.RWMutex
	startTime    time.Time
}

func NewHTTPServerComponent(d *daemon.Daemon, cfg *config.ServerConfig, cacheComp *CacheComponent, prefetchComp *PrefetchComponent, protocolComp *ProtocolComponent) *HTTPServerComponent {
	return &HTTPServerComponent{
		daemon:       d,
		cfg:          cfg,
		cacheComp:    cacheComp,
		prefetchComp: prefetchComp,
		protocolComp: protocolComp,
	}
}

func (h *HTTPServerComponent) Name() string {
	return "HTTPServer"
}

func (h *HTTPServerComponent) Dependencies() []string {
	return []string{"PrepCache", "Protocol", "Prefetch"}
}

func (h *HTTPServerComponent) Init(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/prefetch/status", h.handlePrefetchStatus)
	mux.HandleFunc("POST /api/prefetch/refresh", h.handlePrefetchRefresh)
	mux.HandleFunc("GET /api/meetings", h.handleListMeetings)
	mux.HandleFunc("GET /api/meetings/{id}", h.handleGetMeeting)
	mux.HandleFunc("DELETE /api/meetings/{id}", h.handleClearMeeting)
	mux.HandleFunc("POST /api/prompts/reload", h.handlePromptsReload)
	mux.HandleFunc("POST /api/protocol/reload", h.handleProtocolReload)

	readTimeout, err := config.DurationOrDefault(h.cfg.ReadTimeout, config.DefaultServerReadTimeout)
	if err != nil {
		return fmt.Errorf("parse server read timeout: %w", err)
	}
	writeTimeout, err := config.DurationOrDefault(h.cfg.WriteTimeout, config.DefaultServerWriteTimeout)
	if err != nil {
		return fmt.Errorf("parse server write timeout: %w", err)
	}
	idleTimeout, err := config.DurationOrDefault(h.cfg.IdleTimeout, config.DefaultServerIdleTimeout)
	if err != nil {
		return fmt.Errorf("parse server idle timeout: %w", err)
	}
	shutdownTimeout, err := config.DurationOrDefault(h.cfg.ShutdownTimeout, config.DefaultServerShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse server shutdown timeout: %w", err)
	}

	h.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", h.cfg.Port),
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	h.shutdownTTL = shutdownTimeout

	h.initialized = true
	slog.Info("HTTPServer initialized", "component", h.Name(), "port", h.cfg.Port)
	return nil
}

func (h *HTTPServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return fmt.Errorf("HTTPServer not initialized")
	}

	go func() {
		slog.Info("HTTP server listening", "component", h.Name(), "addr", h.server.Addr)
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "component", h.Name(), "error", err)
		}
	}()

	h.started = true
	h.startTime = time.Now()
	return nil
}

func (h *HTTPServerComponent) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		slog.Info("HTTPServer not started, skipping stop", "component", h.Name())
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, h.shutdownTTL)
	defer cancel()

	if err := h.server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTPServer shutdown error", "component", h.Name(), "error", err)
		return err
	}

	h.started = false
	slog.Info("HTTPServer stopped", "component", h.Name())
	return nil
}

func (h *HTTPServerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.initialized {
		return &daemon.ComponentHealth{
			Name:    h.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}

	if !h.started {
		return &daemon.ComponentHealth{
			Name:    h.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not started"),
		}, nil
	}

	return &daemon.ComponentHealth{
		Name:    h.Name(),
		Healthy: true,
	}, nil
}

func (h *HTTPServerComponent) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthResponse := map[string]interface{}{
		"status":         string(h.daemon.Health()),
		"uptime_seconds": int64(h.daemon.Uptime().Seconds()),
	}

	componentHealthMap := make(map[string]interface{})
	for name, ch := range h.daemon.ComponentHealth() {
		entry := map[string]interface{}{"healthy": ch.Healthy}
		if ch.Error != nil {
			entry["error"] = ch.Error.Error()
		}
		componentHealthMap[name] = entry
	}
	healthResponse["components"] = componentHealthMap

	writeJSON(w, http.StatusOK, healthResponse)
}

func (h *HTTPServerComponent) handlePrefetchStatus(w http.ResponseWriter, r *http.Request) {
	engine := h.prefetchComp.GetEngine()
	if engine == nil {
		http.Error(w, "prefetch engine not initialized", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, engine.Status())
}

// handlePrefetchRefresh flips the engine into aggressive mode and wakes
// it, so the caller sees fresh data within the aggressive interval.
func (h *HTTPServerComponent) handlePrefetchRefresh(w http.ResponseWriter, r *http.Request) {
	engine := h.prefetchComp.GetEngine()
	if engine == nil {
		http.Error(w, "prefetch engine not initialized", http.StatusServiceUnavailable)
		return
	}
	engine.ForceAggressive(true)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

type meetingSummary struct {
	ID          string                 `json:"id"`
	Info        *prepcache.MeetingInfo `json:"info,omitempty"`
	ValidSlots  []string               `json:"valid_slots"`
	FilledSlots []string               `json:"filled_slots"`
}

func (h *HTTPServerComponent) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	cache := h.cacheComp.GetCache()
	meetings := make([]meetingSummary, 0)

	for _, id := range cache.Meetings() {
		summary := meetingSummary{
			ID:          id,
			Info:        cache.MeetingInfo(id),
			ValidSlots:  make([]string, 0),
			FilledSlots: make([]string, 0),
		}
		for _, s := range prepcache.SourceOrder {
			if cache.HasData(id, s) {
				summary.FilledSlots = append(summary.FilledSlots, string(s))
			}
			if cache.IsValid(id, s) {
				summary.ValidSlots = append(summary.ValidSlots, string(s))
			}
		}
		meetings = append(meetings, summary)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"meetings": meetings})
}

func (h *HTTPServerComponent) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entry := h.cacheComp.GetCache().Entry(id)
	if entry == nil {
		http.Error(w, "meeting not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *HTTPServerComponent) handleClearMeeting(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.cacheComp.GetCache().Clear(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *HTTPServerComponent) handlePromptsReload(w http.ResponseWriter, r *http.Request) {
	table := h.prefetchComp.GetPrompts()
	if table == nil {
		http.Error(w, "prompts not initialized", http.StatusServiceUnavailable)
		return
	}
	if err := table.Reload(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (h *HTTPServerComponent) handleProtocolReload(w http.ResponseWriter, r *http.Request) {
	client := h.protocolComp.GetClient()
	if client == nil {
		http.Error(w, "protocol client not initialized", http.StatusServiceUnavailable)
		return
	}
	if err := client.ReloadConfig(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
