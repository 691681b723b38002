package source

import (
	"context"
	"encoding/json"

	prepdErrors "github.com/prepdhq/prepd/internal/errors"
	"github.com/prepdhq/prepd/internal/prepcache"
)

// FileSearcher is the collaborator behind the drive source.
type FileSearcher interface {
	SearchFiles(ctx context.Context, query string, limit int) (json.RawMessage, error)
}

type Drive struct {
	searcher FileSearcher
	limit    int
}

func NewDrive(searcher FileSearcher, limit int) *Drive {
	if limit <= 0 {
		limit = 10
	}
	return &Drive{searcher: searcher, limit: limit}
}

func (f *Drive) Name() prepcache.SourceName {
	return prepcache.SourceDrive
}

func (f *Drive) Fetch(ctx context.Context, req Request) (json.RawMessage, error) {
	if f.searcher == nil {
		return nil, prepdErrors.NotConfigured("no drive integration wired")
	}

	query := searchTerms(req.Meeting)
	if query == "" {
		query = req.Meeting.Title
	}

	result, err := f.searcher.SearchFiles(ctx, query, f.limit)
	if err != nil {
		return nil, prepdErrors.WrapWithCategory(err, "drive search", prepdErrors.ErrFetch)
	}
	return result, nil
}
