package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	prepdErrors "github.com/prepdhq/prepd/internal/errors"
	"github.com/prepdhq/prepd/internal/prepcache"
	"github.com/prepdhq/prepd/internal/summarizer"
)

// Summary composes a briefing from whatever the other five slots hold.
// It runs last in the source order so the freshest gathered context is
// available as input. Stale slot data is still usable input; only a slot
// that never held data is skipped.
type Summary struct {
	cache   *prepcache.Cache
	model   summarizer.Summarizer
	timeout time.Duration
}

type summaryPayload struct {
	Text        string   `json:"text"`
	Provider    string   `json:"provider"`
	Inputs      []string `json:"inputs"`
	GeneratedAt string   `json:"generated_at"`
}

// NewSummary builds the summary fetcher. A positive timeout bounds each
// model call independently of the caller's deadline; zero disables it.
func NewSummary(cache *prepcache.Cache, model summarizer.Summarizer, timeout time.Duration) *Summary {
	return &Summary{cache: cache, model: model, timeout: timeout}
}

func (f *Summary) Name() prepcache.SourceName {
	return prepcache.SourceSummary
}

func (f *Summary) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	if f.model == nil {
		return nil, prepdErrors.NotConfigured("no summarizer provider configured")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Meeting: %s\n", req.Meeting.Title)
	if !req.Meeting.StartTime.IsZero() {
		fmt.Fprintf(&sb, "Starts: %s\n", req.Meeting.StartTime.Format(time.RFC1123))
	}
	if len(req.Meeting.Attendees) > 0 {
		fmt.Fprintf(&sb, "Attendees: %s\n", strings.Join(req.Meeting.Attendees, ", "))
	}
	if req.Meeting.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", req.Meeting.Description)
	}

	var inputs []string
	for _, s := range prepcache.SourceOrder {
		if s == prepcache.SourceSummary {
			continue
		}
		data := f.cache.Get(req.MeetingID, s)
		if len(data) == 0 {
			continue
		}
		inputs = append(inputs, string(s))
		fmt.Fprintf(&sb, "\n## %s\n%s\n", s, string(data))
	}

	if len(inputs) == 0 {
		return nil, prepdErrors.Fetch("no source data available to summarize")
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	text, err := f.model.Summarize(ctx, req.Prompt, sb.String())
	if err != nil {
		return nil, prepdErrors.WrapWithCategory(err, "generate summary", prepdErrors.ErrFetch)
	}
	if strings.TrimSpace(text) == "" {
		return nil, prepdErrors.Fetch("summarizer returned empty briefing")
	}

	return json.Marshal(summaryPayload{
		Text:        text,
		Provider:    f.model.Name(),
		Inputs:      inputs,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	})
}
