package source

import (
	"context"
	"encoding/json"
	"time"

	"github.com/slack-go/slack"

	"github.com/prepdhq/prepd/internal/config"
	prepdErrors "github.com/prepdhq/prepd/internal/errors"
	"github.com/prepdhq/prepd/internal/prepcache"
)

// Slack searches workspace messages mentioning the meeting. Search needs
// a user token; the fetcher reports ErrNotConfigured when none is set so
// the slot simply stays empty.
type Slack struct {
	api *slack.Client
	cfg config.SlackSourceConfig
}

type slackMessage struct {
	Channel   string `json:"channel"`
	User      string `json:"user"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
	Permalink string `json:"permalink,omitempty"`
}

func NewSlack(cfg config.SlackSourceConfig) *Slack {
	s := &Slack{cfg: cfg}
	if cfg.Enabled && cfg.UserToken != "" {
		s.api = slack.New(cfg.UserToken)
	}
	return s
}

func (f *Slack) Name() prepcache.SourceName {
	return prepcache.SourceSlack
}

func (f *Slack) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	if f.api == nil {
		return nil, prepdErrors.NotConfigured("slack user token not set")
	}

	query := searchTerms(req.Meeting)
	if query == "" {
		query = req.Meeting.Title
	}

	count := f.cfg.MaxResults
	if count <= 0 {
		count = 20
	}

	params := slack.NewSearchParameters()
	params.Count = count
	params.Sort = "timestamp"
	params.SortDirection = "desc"

	results, err := f.api.SearchMessagesContext(ctx, query, params)
	if err != nil {
		return nil, prepdErrors.WrapWithCategory(err, "slack search", prepdErrors.ErrFetch)
	}

	messages := make([]slackMessage, 0, len(results.Matches))
	for _, m := range results.Matches {
		messages = append(messages, slackMessage{
			Channel:   m.Channel.Name,
			User:      m.Username,
			Timestamp: m.Timestamp,
			Text:      m.Text,
			Permalink: m.Permalink,
		})
	}

	payload := map[string]interface{}{
		"query":      query,
		"fetched_at": time.Now().UTC().Format(time.RFC3339),
		"messages":   messages,
	}
	return json.Marshal(payload)
}
