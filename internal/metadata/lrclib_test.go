package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func lrclibServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// Three candidates at 180.0, 182.5, and 200.0 seconds for a 183 second
// query: the middle one is closest and must win; its synced lyrics are
// preferred over plain.
func TestLRCLIBBestDurationMatch(t *testing.T) {
	srv := lrclibServer(t, `[
		{"trackName": "T", "artistName": "A", "duration": 180.0, "plainLyrics": "plain0", "syncedLyrics": ""},
		{"trackName": "T", "artistName": "A", "duration": 182.5, "plainLyrics": "plain1", "syncedLyrics": "[00:01.00] synced1"},
		{"trackName": "T", "artistName": "A", "duration": 200.0, "plainLyrics": "plain2", "syncedLyrics": ""}
	]`)
	p := NewLRCLIB(LRCLIBConfig{Enabled: true, BaseURL: srv.URL, Logger: zerolog.Nop()})

	ly := p.Lyrics(context.Background(), &SongKey{
		Title:    "T",
		Artist:   "A",
		Duration: 183 * time.Second,
	})
	if ly == nil {
		t.Fatal("no lyrics")
	}
	if !ly.Synced {
		t.Error("synced lyrics should be preferred")
	}
	if ly.Text != "[00:01.00] synced1" {
		t.Errorf("text = %q, want the 182.5s candidate", ly.Text)
	}
}

func TestLRCLIBFallsBackToPlain(t *testing.T) {
	srv := lrclibServer(t, `[
		{"trackName": "T", "artistName": "A", "duration": 100.0, "plainLyrics": "just words", "syncedLyrics": ""}
	]`)
	p := NewLRCLIB(LRCLIBConfig{Enabled: true, BaseURL: srv.URL, Logger: zerolog.Nop()})

	ly := p.Lyrics(context.Background(), &SongKey{Title: "T", Artist: "A", Duration: 100 * time.Second})
	if ly == nil || ly.Synced || ly.Text != "just words" {
		t.Errorf("lyrics = %+v", ly)
	}
}

func TestLRCLIBDisabledIsPassThrough(t *testing.T) {
	p := NewLRCLIB(LRCLIBConfig{Enabled: false, BaseURL: "http://127.0.0.1:1", Logger: zerolog.Nop()})
	if ly := p.Lyrics(context.Background(), &SongKey{Title: "T", Artist: "A"}); ly != nil {
		t.Errorf("disabled provider returned %+v", ly)
	}
}

func TestLRCLIBNetworkFailureReturnsNil(t *testing.T) {
	p := NewLRCLIB(LRCLIBConfig{Enabled: true, BaseURL: "http://127.0.0.1:1", Logger: zerolog.Nop()})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if ly := p.Lyrics(ctx, &SongKey{Title: "T", Artist: "A"}); ly != nil {
		t.Errorf("unreachable service returned %+v", ly)
	}
}

func TestBestCandidateNoQueryDuration(t *testing.T) {
	candidates := []lrclibCandidate{
		{Duration: 120}, {Duration: 90},
	}
	best := bestCandidate(candidates, 0)
	if best != &candidates[0] {
		t.Error("first candidate should win without a query duration")
	}
}
