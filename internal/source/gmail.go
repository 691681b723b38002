package source

import (
	"context"
	"encoding/json"
	"strings"

	prepdErrors "github.com/prepdhq/prepd/internal/errors"
	"github.com/prepdhq/prepd/internal/prepcache"
)

// MailSearcher is the collaborator behind the gmail source. Deployments
// without a mail integration leave it nil and the slot stays empty.
type MailSearcher interface {
	SearchThreads(ctx context.Context, query string, limit int) (json.RawMessage, error)
}

type Gmail struct {
	searcher MailSearcher
	limit    int
}

func NewGmail(searcher MailSearcher, limit int) *Gmail {
	if limit <= 0 {
		limit = 10
	}
	return &Gmail{searcher: searcher, limit: limit}
}

func (f *Gmail) Name() prepcache.SourceName {
	return prepcache.SourceGmail
}

func (f *Gmail) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	if f.searcher == nil {
		return nil, prepdErrors.NotConfigured("no mail integration wired")
	}

	var parts []string
	if terms := searchTerms(req.Meeting); terms != "" {
		parts = append(parts, terms)
	}
	for _, a := range req.Meeting.Attendees {
		parts = append(parts, "from:"+a)
	}
	query := strings.Join(parts, " OR ")
	if query == "" {
		query = "newer_than:7d"
	}

	result, err := f.searcher.SearchThreads(ctx, query, f.limit)
	if err != nil {
		return nil, prepdErrors.WrapWithCategory(err, "gmail search", prepdErrors.ErrFetch)
	}
	return result, nil
}
