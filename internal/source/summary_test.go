package source

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prepdhq/prepd/internal/config"
	prepdErrors "github.com/prepdhq/prepd/internal/errors"
	"github.com/prepdhq/prepd/internal/prepcache"
)

func jiraCfg(project string) config.JiraSourceConfig {
	return config.JiraSourceConfig{Project: project, MaxResults: 10}
}

type fakeSummarizer struct {
	gotInstructions string
	gotContent      string
	reply           string
	err             error
}

func (f *fakeSummarizer) Name() string {
	return "fake"
}

func (f *fakeSummarizer) Summarize(ctx context.Context, instructions, content string) (string, error) {
	f.gotInstructions = instructions
	f.gotContent = content
	return f.reply, f.err
}

func newSummaryCache(t *testing.T) *prepcache.Cache {
	t.Helper()
	return prepcache.New(filepath.Join(t.TempDir(), "prep_cache.json"), 4*time.Hour, 6*time.Hour)
}

func TestSummaryComposesFromFilledSlots(t *testing.T) {
	cache := newSummaryCache(t)
	cache.Set("m1", prepcache.SourceJira, json.RawMessage(`{"issues":["PHX-12"]}`))
	cache.Set("m1", prepcache.SourceSlack, json.RawMessage(`{"messages":["ship it"]}`))

	model := &fakeSummarizer{reply: "Short briefing."}
	f := NewSummary(cache, model, 0)

	req := Request{
		MeetingID: "m1",
		Meeting:   prepcache.MeetingInfo{Title: "Phoenix launch", Attendees: []string{"ana@example.com"}},
		Prompt:    "Write a short briefing.",
	}

	data, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	var payload struct {
		Text     string   `json:"text"`
		Provider string   `json:"provider"`
		Inputs   []string `json:"inputs"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Text != "Short briefing." {
		t.Errorf("text = %q", payload.Text)
	}
	if payload.Provider != "fake" {
		t.Errorf("provider = %q", payload.Provider)
	}
	if len(payload.Inputs) != 2 {
		t.Errorf("inputs = %v, want jira and slack", payload.Inputs)
	}

	if model.gotInstructions != "Write a short briefing." {
		t.Errorf("instructions = %q", model.gotInstructions)
	}
	for _, fragment := range []string{"Phoenix launch", "PHX-12", "ship it"} {
		if !strings.Contains(model.gotContent, fragment) {
			t.Errorf("summarizer input missing %q", fragment)
		}
	}
}

func TestSummaryFailsWithNoInputs(t *testing.T) {
	cache := newSummaryCache(t)
	f := NewSummary(cache, &fakeSummarizer{reply: "x"}, 0)

	_, err := f.Fetch(context.Background(), Request{MeetingID: "m1", Meeting: prepcache.MeetingInfo{Title: "Empty"}})
	if err == nil {
		t.Fatal("summary without any source data should fail")
	}
	if !prepdErrors.IsCategory(err, prepdErrors.ErrFetch) {
		t.Errorf("error category = %v", err)
	}
}

func TestSummaryRejectsEmptyBriefing(t *testing.T) {
	cache := newSummaryCache(t)
	cache.Set("m1", prepcache.SourceJira, json.RawMessage(`{}`))

	f := NewSummary(cache, &fakeSummarizer{reply: "   "}, 0)
	if _, err := f.Fetch(context.Background(), Request{MeetingID: "m1"}); err == nil {
		t.Error("blank summarizer output should not be cached")
	}
}

type blockingSummarizer struct{}

func (b *blockingSummarizer) Name() string {
	return "blocking"
}

func (b *blockingSummarizer) Summarize(ctx context.Context, instructions, content string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestSummaryTimeoutBoundsModelCall(t *testing.T) {
	cache := newSummaryCache(t)
	cache.Set("m1", prepcache.SourceJira, json.RawMessage(`{}`))

	f := NewSummary(cache, &blockingSummarizer{}, 50*time.Millisecond)

	start := time.Now()
	_, err := f.Fetch(context.Background(), Request{MeetingID: "m1", Meeting: prepcache.MeetingInfo{Title: "Slow"}})
	if err == nil {
		t.Fatal("a stalled model call should fail once the timeout elapses")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("fetch took %v, the configured timeout should have cut it off", elapsed)
	}
	if !prepdErrors.IsCategory(err, prepdErrors.ErrFetch) {
		t.Errorf("error category = %v", err)
	}
}

func TestGmailNotConfigured(t *testing.T) {
	f := NewGmail(nil, 0)
	_, err := f.Fetch(context.Background(), Request{MeetingID: "m1"})
	if !prepdErrors.IsCategory(err, prepdErrors.ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestDriveNotConfigured(t *testing.T) {
	f := NewDrive(nil, 0)
	_, err := f.Fetch(context.Background(), Request{MeetingID: "m1"})
	if !prepdErrors.IsCategory(err, prepdErrors.ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestSlackWithoutTokenNotConfigured(t *testing.T) {
	f := NewSlack(config.SlackSourceConfig{Enabled: true})
	_, err := f.Fetch(context.Background(), Request{MeetingID: "m1"})
	if !prepdErrors.IsCategory(err, prepdErrors.ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}
