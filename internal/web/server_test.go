package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/luis-tiberio/packed-sp5/internal/history"
)

type fakeRuns struct {
	runs []history.Run
	err  error
}

func (f *fakeRuns) Recent(ctx context.Context, limit int) ([]history.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func doGet(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := NewServer(&fakeRuns{})

	rec := doGet(t, s, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRuns_ReturnsHistory(t *testing.T) {
	src := &fakeRuns{runs: []history.Run{
		{ID: "r2", State: "done", Outcome: "published", Records: 10, StartedAt: time.Now()},
		{ID: "r1", State: "failed", Error: "sink batch 3: quota exceeded"},
	}}
	s := NewServer(src)

	rec := doGet(t, s, "/api/runs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var runs []history.Run
	if err := json.NewDecoder(rec.Body).Decode(&runs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r2" {
		t.Errorf("runs = %+v, want 2 runs newest first", runs)
	}
}

func TestRuns_LimitValidation(t *testing.T) {
	s := NewServer(&fakeRuns{})

	for _, q := range []string{"?limit=0", "?limit=-1", "?limit=oops", "?limit=9999"} {
		rec := doGet(t, s, "/api/runs"+q)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET /api/runs%s status = %d, want 400", q, rec.Code)
		}
	}
}

func TestRuns_SourceFailure(t *testing.T) {
	s := NewServer(&fakeRuns{err: errors.New("db locked")})

	rec := doGet(t, s, "/api/runs")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestRuns_HistoryDisabled(t *testing.T) {
	s := NewServer(nil)

	rec := doGet(t, s, "/api/runs")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
