package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestLastFMAlbumGetInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("method") != "album.getinfo" {
			t.Errorf("method = %q", q.Get("method"))
		}
		if q.Get("api_key") != "test-key" || q.Get("format") != "json" {
			t.Errorf("query = %v", q)
		}
		if q.Get("mbid") != "m" {
			t.Errorf("mbid = %q, want the key's MBID", q.Get("mbid"))
		}
		w.Write([]byte(`{"album": {
			"name": "X",
			"artist": "Someone",
			"mbid": "m",
			"image": [
				{"#text": "http://img/small.png", "size": "small"},
				{"#text": "http://img/xl.png", "size": "extralarge"}
			],
			"tags": {"tag": [{"name": "rock"}]},
			"wiki": {"summary": "  about X  "}
		}}`))
	}))
	defer srv.Close()

	p := NewLastFM(LastFMConfig{Enabled: true, APIKey: "test-key", BaseURL: srv.URL, Logger: zerolog.Nop()})
	doc := p.AlbumMeta(context.Background(), &AlbumKey{Title: "X", Artist: "Someone", MBID: "m"}, nil)

	if doc == nil {
		t.Fatal("nil result")
	}
	if doc.Wiki != "about X" {
		t.Errorf("wiki = %q", doc.Wiki)
	}
	if doc.ImageURL != "http://img/xl.png" {
		t.Errorf("image = %q, want the largest", doc.ImageURL)
	}
	if len(doc.Tags) != 1 || doc.Tags[0] != "rock" {
		t.Errorf("tags = %v", doc.Tags)
	}
}

func TestLastFMArtistGetInfoByName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("method") != "artist.getinfo" || q.Get("artist") != "Someone" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"artist": {
			"name": "Someone",
			"mbid": "artist-1",
			"bio": {"summary": "a band"},
			"tags": {"tag": [{"name": "indie"}]}
		}}`))
	}))
	defer srv.Close()

	p := NewLastFM(LastFMConfig{Enabled: true, APIKey: "test-key", BaseURL: srv.URL, Logger: zerolog.Nop()})
	doc := p.ArtistMeta(context.Background(), &ArtistKey{Name: "Someone"}, nil)

	if doc == nil {
		t.Fatal("nil result")
	}
	if doc.MBID != "artist-1" || doc.Bio != "a band" {
		t.Errorf("doc = %+v", doc)
	}
}

// Without an API key the provider must not touch the network.
func TestLastFMWithoutKeyIsPassThrough(t *testing.T) {
	p := NewLastFM(LastFMConfig{Enabled: true, APIKey: "", BaseURL: "http://127.0.0.1:1", Logger: zerolog.Nop()})
	existing := &AlbumMeta{Title: "Keep"}
	doc := p.AlbumMeta(context.Background(), &AlbumKey{Title: "X", Artist: "A"}, existing)
	if doc != existing {
		t.Errorf("keyless provider changed the document: %+v", doc)
	}
}

func TestPickLargestImage(t *testing.T) {
	images := []lfmImage{
		{URL: "s", Size: "small"},
		{URL: "", Size: "mega"},
		{URL: "l", Size: "large"},
	}
	if got := pickLargestImage(images); got != "l" {
		t.Errorf("pickLargestImage = %q, want %q", got, "l")
	}
}
