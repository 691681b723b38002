package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prepdhq/prepd/internal/calendar"
	"github.com/prepdhq/prepd/internal/config"
	"github.com/prepdhq/prepd/internal/daemon"
	"github.com/prepdhq/prepd/internal/prefetch"
	"github.com/prepdhq/prepd/internal/prompts"
	"github.com/prepdhq/prepd/internal/source"
	"github.com/prepdhq/prepd/internal/summarizer"
)

// PrefetchComponent assembles the source fetchers and runs the refresh
// engine. Gmail and drive take optional collaborators; when nil those
// slots simply never populate.
type PrefetchComponent struct {
	cfg          *config.Config
	cacheComp    *CacheComponent
	protocolComp *ProtocolComponent
	cal          calendar.Calendar
	mail         source.MailSearcher
	files        source.FileSearcher

	engine  *prefetch.Engine
	prompts *prompts.Table
}

func NewPrefetchComponent(cfg *config.Config, cacheComp *CacheComponent, protocolComp *ProtocolComponent, cal calendar.Calendar, mail source.MailSearcher, files source.FileSearcher) *PrefetchComponent {
	return &PrefetchComponent{
		cfg:          cfg,
		cacheComp:    cacheComp,
		protocolComp: protocolComp,
		cal:          cal,
		mail:         mail,
		files:        files,
	}
}

func (p *PrefetchComponent) Name() string {
	return "Prefetch"
}

func (p *PrefetchComponent) Dependencies() []string {
	return []string{"PrepCache", "Protocol"}
}

func (p *PrefetchComponent) Init(ctx context.Context) error {
	if p.cal == nil {
		return fmt.Errorf("calendar not provided")
	}
	cache := p.cacheComp.GetCache()
	if cache == nil {
		return fmt.Errorf("cache not initialized")
	}
	client := p.protocolComp.GetClient()
	if client == nil {
		return fmt.Errorf("protocol client not initialized")
	}

	model, err := summarizer.New(p.cfg.Summarizer)
	if err != nil {
		return fmt.Errorf("build summarizer: %w", err)
	}
	summaryTimeout, err := config.DurationOrDefault(p.cfg.Summarizer.Timeout, config.DefaultSummarizerTimeout)
	if err != nil {
		return fmt.Errorf("parse summarizer timeout: %w", err)
	}

	callTimeout := p.protocolComp.CallTimeout()
	fetchers := []source.Fetcher{
		source.NewJira(client, p.cfg.Sources.Jira, callTimeout),
		source.NewConfluence(client, p.cfg.Sources.Jira, callTimeout),
		source.NewSlack(p.cfg.Sources.Slack),
		source.NewGmail(p.mail, 0),
		source.NewDrive(p.files, 0),
		source.NewSummary(cache, model, summaryTimeout),
	}

	p.prompts = prompts.NewTable(p.cfg.Prompts.OverridesPath)

	engine, err := prefetch.NewEngine(cache, p.cal, fetchers, p.prompts, p.cfg.Prefetch, p.cfg.Cache)
	if err != nil {
		return fmt.Errorf("build prefetch engine: %w", err)
	}
	p.engine = engine

	if err := p.engine.Init(ctx); err != nil {
		return fmt.Errorf("init prefetch engine: %w", err)
	}

	slog.Info("Prefetch initialized", "component", p.Name(), "fetchers", len(fetchers))
	return nil
}

func (p *PrefetchComponent) Start(ctx context.Context) error {
	if p.engine == nil {
		return fmt.Errorf("prefetch engine not initialized")
	}
	return p.engine.Start(ctx)
}

func (p *PrefetchComponent) Stop(ctx context.Context) error {
	if p.engine == nil {
		slog.Info("Prefetch not initialized, skipping stop", "component", p.Name())
		return nil
	}
	return p.engine.Stop(ctx)
}

func (p *PrefetchComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if p.engine == nil {
		return &daemon.ComponentHealth{
			Name:    p.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}

	if err := p.engine.Health(ctx); err != nil {
		return &daemon.ComponentHealth{
			Name:    p.Name(),
			Healthy: false,
			Error:   err,
		}, nil
	}

	return &daemon.ComponentHealth{
		Name:    p.Name(),
		Healthy: true,
	}, nil
}

func (p *PrefetchComponent) GetEngine() *prefetch.Engine {
	return p.engine
}

func (p *PrefetchComponent) GetPrompts() *prompts.Table {
	return p.prompts
}
