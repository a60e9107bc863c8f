package concierge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CalosDev/aquitado-ops/internal/domain"
	"github.com/CalosDev/aquitado-ops/internal/health"
)

// Searcher is the slice of the business store the directory needs.
type Searcher interface {
	SearchBusinesses(ctx context.Context, query string, limit int) ([]domain.Business, error)
}

// Answer is one directory-search response: a short natural-language answer
// plus ranked suggestions.
type Answer struct {
	Answer string              `json:"answer"`
	Data   []domain.Suggestion `json:"data"`
}

// Directory answers free-text customer queries from the business catalog.
type Directory struct {
	searcher Searcher
	tracker  *health.Tracker
	logger   *slog.Logger
	linkBase string
}

func NewDirectory(searcher Searcher, tracker *health.Tracker, logger *slog.Logger, linkBase string) *Directory {
	if linkBase == "" {
		linkBase = "https://aquitado.do/b"
	}
	return &Directory{
		searcher: searcher,
		tracker:  tracker,
		logger:   logger,
		linkBase: linkBase,
	}
}

func (d *Directory) Query(ctx context.Context, query string, limit int) (*Answer, error) {
	start := time.Now()
	businesses, err := d.searcher.SearchBusinesses(ctx, query, limit)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	d.tracker.Record("ai", "concierge_search", elapsed, err == nil)

	if err != nil {
		return nil, fmt.Errorf("concierge search: %w", err)
	}

	if len(businesses) == 0 {
		return &Answer{
			Answer: fmt.Sprintf("I couldn't find anything matching %q yet. Try another name or neighborhood?", query),
			Data:   []domain.Suggestion{},
		}, nil
	}

	suggestions := make([]domain.Suggestion, 0, len(businesses))
	for _, b := range businesses {
		suggestions = append(suggestions, domain.Suggestion{
			Name:      b.Name,
			Link:      fmt.Sprintf("%s/%s", d.linkBase, b.ID),
			Latitude:  b.Latitude,
			Longitude: b.Longitude,
			Address:   b.Address,
		})
	}

	return &Answer{
		Answer: fmt.Sprintf("%s looks like a good match for %q.", businesses[0].Name, query),
		Data:   suggestions,
	}, nil
}
