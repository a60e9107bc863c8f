package concierge

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/CalosDev/aquitado-ops/internal/domain"
	"github.com/CalosDev/aquitado-ops/internal/health"
)

type fakeSearcher struct {
	results []domain.Business
	err     error
	gotQ    string
	gotN    int
}

func (f *fakeSearcher) SearchBusinesses(ctx context.Context, query string, limit int) ([]domain.Business, error) {
	f.gotQ, f.gotN = query, limit
	return f.results, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func floatPtr(v float64) *float64 { return &v }

func TestDirectory_QueryComposesSuggestions(t *testing.T) {
	searcher := &fakeSearcher{results: []domain.Business{
		{ID: "b1", Name: "La Esquina", Latitude: floatPtr(18.5), Longitude: floatPtr(-69.9)},
		{ID: "b2", Name: "Casa Verde"},
	}}
	tracker := health.NewTracker()
	d := NewDirectory(searcher, tracker, testLogger(), "")

	answer, err := d.Query(context.Background(), "tacos", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if searcher.gotQ != "tacos" || searcher.gotN != 5 {
		t.Errorf("search args: got (%q, %d)", searcher.gotQ, searcher.gotN)
	}
	if !strings.Contains(answer.Answer, "La Esquina") {
		t.Errorf("answer should name the top match, got %q", answer.Answer)
	}
	if len(answer.Data) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(answer.Data))
	}
	if answer.Data[0].Link != "https://aquitado.do/b/b1" {
		t.Errorf("link: got %q", answer.Data[0].Link)
	}
	if !answer.Data[0].HasCoordinates() || answer.Data[1].HasCoordinates() {
		t.Error("coordinates should carry through from the business rows")
	}

	reports := tracker.Snapshot(nil)
	if len(reports) != 1 || reports[0].Key != "ai:concierge_search" {
		t.Fatalf("expected one ai:concierge_search sample, got %v", reports)
	}
}

func TestDirectory_QueryNoResults(t *testing.T) {
	d := NewDirectory(&fakeSearcher{}, health.NewTracker(), testLogger(), "")

	answer, err := d.Query(context.Background(), "nonexistent", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answer.Data) != 0 {
		t.Errorf("expected no suggestions, got %d", len(answer.Data))
	}
	if !strings.Contains(answer.Answer, "nonexistent") {
		t.Errorf("empty answer should echo the query, got %q", answer.Answer)
	}
}

func TestDirectory_QueryErrorRecordsFailure(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("db down")}
	tracker := health.NewTracker()
	d := NewDirectory(searcher, tracker, testLogger(), "")

	if _, err := d.Query(context.Background(), "tacos", 5); err == nil {
		t.Fatal("expected error")
	}

	r := tracker.Snapshot(nil)[0]
	if r.FailureCount != 1 {
		t.Errorf("failure count: got %d, want 1", r.FailureCount)
	}
}
