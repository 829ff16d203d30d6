package metadata

import (
	"context"
	"math"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
)

// DefaultLRCLIBURL is the production LRCLIB API root.
const DefaultLRCLIBURL = "https://lrclib.net"

// LRCLIBConfig configures the LRCLIB lyrics provider.
type LRCLIBConfig struct {
	Enabled    bool
	BaseURL    string       // Optional: override for testing
	HTTPClient *http.Client // Optional
	Logger     zerolog.Logger
}

// LRCLIB resolves lyrics by track/artist/album search. Among the
// returned candidates it picks the one whose declared duration is
// closest to the queried song's, preferring synced lyrics over plain.
type LRCLIB struct {
	cfg      LRCLIBConfig
	priority int
	client   *http.Client
	baseURL  string
	logger   zerolog.Logger
}

// NewLRCLIB creates the provider.
func NewLRCLIB(cfg LRCLIBConfig) *LRCLIB {
	client := cfg.HTTPClient
	if client == nil {
		client = newHTTPClient()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultLRCLIBURL
	}
	return &LRCLIB{
		cfg:     cfg,
		client:  client,
		baseURL: baseURL,
		logger:  cfg.Logger.With().Str("provider", "lrclib").Logger(),
	}
}

// Key returns the provider's registration key.
func (l *LRCLIB) Key() string { return "lrclib" }

// Priority returns the provider's chain position.
func (l *LRCLIB) Priority() int { return l.priority }

// SetPriority sets the provider's chain position.
func (l *LRCLIB) SetPriority(n int) { l.priority = n }

// AlbumMeta is not provided by LRCLIB.
func (l *LRCLIB) AlbumMeta(ctx context.Context, key *AlbumKey, existing *AlbumMeta) *AlbumMeta {
	return existing
}

// ArtistMeta is not provided by LRCLIB.
func (l *LRCLIB) ArtistMeta(ctx context.Context, key *ArtistKey, existing *ArtistMeta) *ArtistMeta {
	return existing
}

type lrclibCandidate struct {
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	Duration     float64 `json:"duration"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// Lyrics searches for the song and returns the best duration match.
func (l *LRCLIB) Lyrics(ctx context.Context, key *SongKey) *Lyrics {
	if !l.cfg.Enabled {
		return nil
	}
	if key.Title == "" || key.Artist == "" {
		return nil
	}

	q := url.Values{}
	q.Set("track_name", key.Title)
	q.Set("artist_name", key.Artist)
	if key.Album != "" {
		q.Set("album_name", key.Album)
	}
	u := l.baseURL + "/api/search?" + q.Encode()

	var candidates []lrclibCandidate
	if err := getJSON(ctx, l.client, u, &candidates); err != nil {
		l.logger.Debug().Err(err).Str("track", key.Title).Msg("Lyrics search failed")
		return nil
	}
	best := bestCandidate(candidates, key.Duration.Seconds())
	if best == nil {
		return nil
	}
	if best.SyncedLyrics != "" {
		return &Lyrics{Synced: true, Text: best.SyncedLyrics}
	}
	if best.PlainLyrics != "" {
		return &Lyrics{Text: best.PlainLyrics}
	}
	return nil
}

// bestCandidate picks the candidate whose duration is closest to the
// queried one. With no known query duration the first candidate wins.
func bestCandidate(candidates []lrclibCandidate, wantSecs float64) *lrclibCandidate {
	if len(candidates) == 0 {
		return nil
	}
	if wantSecs <= 0 {
		return &candidates[0]
	}
	bestIdx := 0
	bestDist := math.Inf(1)
	for i, c := range candidates {
		dist := math.Abs(c.Duration - wantSecs)
		if dist < bestDist {
			bestDist = dist
			bestIdx = i
		}
	}
	return &candidates[bestIdx]
}
