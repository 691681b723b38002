package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prepdhq/prepd/internal/config"
	prepdErrors "github.com/prepdhq/prepd/internal/errors"
	"github.com/prepdhq/prepd/internal/prepcache"
	"github.com/prepdhq/prepd/internal/protocol"
)

// Jira fetches relevant issues through the external tool process. The
// query pairs a text match on the meeting title with open issues touched
// by the attendees.
type Jira struct {
	client      *protocol.Client
	cfg         config.JiraSourceConfig
	callTimeout time.Duration
}

func NewJira(client *protocol.Client, cfg config.JiraSourceConfig, callTimeout time.Duration) *Jira {
	return &Jira{client: client, cfg: cfg, callTimeout: callTimeout}
}

func (f *Jira) Name() prepcache.SourceName {
	return prepcache.SourceJira
}

func (f *Jira) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	maxResults := f.cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	args := map[string]interface{}{
		"jql":   f.buildJQL(req.Meeting),
		"limit": maxResults,
	}

	result, err := f.client.CallTool(ctx, "jira_search", args, f.callTimeout)
	if err != nil {
		return nil, prepdErrors.Wrap(err, "jira search")
	}
	return result, nil
}

func (f *Jira) buildJQL(meeting prepcache.MeetingInfo) string {
	var clauses []string

	if terms := searchTerms(meeting); terms != "" {
		clauses = append(clauses, fmt.Sprintf("text ~ %q", terms))
	}
	if names := attendeeNames(meeting.Attendees); len(names) > 0 {
		quoted := make([]string, len(names))
		for i, n := range names {
			quoted[i] = fmt.Sprintf("%q", n)
		}
		clauses = append(clauses,
			fmt.Sprintf("(assignee in (%[1]s) OR reporter in (%[1]s)) AND statusCategory != Done", strings.Join(quoted, ", ")))
	}

	jql := strings.Join(clauses, " OR ")
	if jql == "" {
		jql = "updated >= -7d"
	}
	if f.cfg.Project != "" {
		jql = fmt.Sprintf("project = %q AND (%s)", f.cfg.Project, jql)
	}
	return jql + " ORDER BY updated DESC"
}
