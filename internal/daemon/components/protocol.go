package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prepdhq/prepd/internal/config"
	"github.com/prepdhq/prepd/internal/daemon"
	"github.com/prepdhq/prepd/internal/protocol"
)

// ProtocolComponent owns the external tool process client. The process
// itself starts lazily on the first call and restarts transparently, so
// a missing tool binary does not block daemon startup.
type ProtocolComponent struct {
	cfg         *config.Config
	client      *protocol.Client
	callTimeout time.Duration
}

func NewProtocolComponent(cfg *config.Config) *ProtocolComponent {
	return &ProtocolComponent{cfg: cfg}
}

func (p *ProtocolComponent) Name() string {
	return "Protocol"
}

func (p *ProtocolComponent) Dependencies() []string {
	return nil
}

func (p *ProtocolComponent) Init(ctx context.Context) error {
	startupTimeout, err := config.DurationOrDefault(p.cfg.Protocol.StartupTimeout, config.DefaultProtocolStartupTimeout)
	if err != nil {
		return fmt.Errorf("parse protocol startup timeout: %w", err)
	}
	callTimeout, err := config.DurationOrDefault(p.cfg.Protocol.CallTimeout, config.DefaultProtocolCallTimeout)
	if err != nil {
		return fmt.Errorf("parse protocol call timeout: %w", err)
	}

	p.client = protocol.NewClient(p.cfg.Protocol.ConfigPath, startupTimeout)
	p.callTimeout = callTimeout

	slog.Info("Protocol client initialized", "component", p.Name(), "config_path", p.cfg.Protocol.ConfigPath)
	return nil
}

func (p *ProtocolComponent) Start(ctx context.Context) error {
	return nil
}

func (p *ProtocolComponent) Stop(ctx context.Context) error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}

func (p *ProtocolComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if p.client == nil {
		return &daemon.ComponentHealth{
			Name:    p.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}

	// A down tool process is not unhealthy: the next call restarts it.
	return &daemon.ComponentHealth{
		Name:    p.Name(),
		Healthy: true,
	}, nil
}

func (p *ProtocolComponent) GetClient() *protocol.Client {
	return p.client
}

func (p *ProtocolComponent) CallTimeout() time.Duration {
	return p.callTimeout
}
