package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prepdhq/prepd/internal/config"
	prepdErrors "github.com/prepdhq/prepd/internal/errors"
	"github.com/prepdhq/prepd/internal/prepcache"
	"github.com/prepdhq/prepd/internal/protocol"
)

// Confluence fetches recently updated pages matching the meeting through
// the external tool process.
type Confluence struct {
	client      *protocol.Client
	cfg         config.JiraSourceConfig
	callTimeout time.Duration
}

func NewConfluence(client *protocol.Client, cfg config.JiraSourceConfig, callTimeout time.Duration) *Confluence {
	return &Confluence{client: client, cfg: cfg, callTimeout: callTimeout}
}

func (f *Confluence) Name() prepcache.SourceName {
	return prepcache.SourceConfluence
}

func (f *Confluence) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	maxResults := f.cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	cql := "lastModified >= now(\"-30d\") ORDER BY lastModified DESC"
	if terms := searchTerms(req.Meeting); terms != "" {
		cql = fmt.Sprintf("text ~ %q AND lastModified >= now(\"-90d\") ORDER BY lastModified DESC", terms)
	}

	args := map[string]interface{}{
		"cql":   cql,
		"limit": maxResults,
	}

	result, err := f.client.CallTool(ctx, "confluence_search", args, f.callTimeout)
	if err != nil {
		return nil, prepdErrors.Wrap(err, "confluence search")
	}
	return result, nil
}
