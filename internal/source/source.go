package source

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/prepdhq/prepd/internal/prepcache"
)

// Request carries everything a fetcher needs for one meeting: the
// meeting metadata and the effective prompt for the source.
type Request struct {
	MeetingID string
	Meeting   prepcache.MeetingInfo
	Prompt    string
}

// Fetcher gathers prep data for one source. A failed fetch returns an
// error and never partial data; the caller decides what to do with the
// previous cached value.
type Fetcher interface {
	Name() prepcache.SourceName
	Fetch(ctx context.Context, req Request) (json.RawMessage, error)
}

// searchTerms flattens a meeting into a query string: the title plus
// attendee names, with noise words dropped.
func searchTerms(meeting prepcache.MeetingInfo) string {
	var terms []string
	for _, word := range strings.Fields(meeting.Title) {
		if isNoiseWord(word) {
			continue
		}
		terms = append(terms, word)
	}
	return strings.Join(terms, " ")
}

var noiseWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "the": {}, "of": {}, "for": {},
	"with": {}, "on": {}, "in": {}, "to": {}, "vs": {},
	"sync": {}, "meeting": {}, "call": {}, "weekly": {}, "daily": {},
	"1:1": {}, "standup": {},
}

func isNoiseWord(word string) bool {
	_, ok := noiseWords[strings.ToLower(word)]
	return ok
}

// attendeeNames strips the domain off email-style attendees so they can
// be used as search terms.
func attendeeNames(attendees []string) []string {
	names := make([]string, 0, len(attendees))
	for _, a := range attendees {
		name := a
		if at := strings.Index(a, "@"); at > 0 {
			name = a[:at]
		}
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
