package metadata

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultLastFMURL is the production Last.fm API 2.0 endpoint.
const DefaultLastFMURL = "https://ws.audioscrobbler.com/2.0/"

// LastFMConfig configures the Last.fm provider.
type LastFMConfig struct {
	Enabled    bool
	APIKey     string       // Required for any request; empty key means pass-through
	BaseURL    string       // Optional: override for testing
	HTTPClient *http.Client // Optional
	Logger     zerolog.Logger
}

// LastFM enriches albums and artists from the Last.fm JSON getinfo
// methods, querying by MBID when the key carries one and by name
// otherwise. Without a configured API key it acts as a pass-through.
type LastFM struct {
	cfg      LastFMConfig
	priority int
	client   *http.Client
	baseURL  string
	logger   zerolog.Logger
}

// NewLastFM creates the provider.
func NewLastFM(cfg LastFMConfig) *LastFM {
	client := cfg.HTTPClient
	if client == nil {
		client = newHTTPClient()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultLastFMURL
	}
	return &LastFM{
		cfg:     cfg,
		client:  client,
		baseURL: baseURL,
		logger:  cfg.Logger.With().Str("provider", "lastfm").Logger(),
	}
}

// Key returns the provider's registration key.
func (l *LastFM) Key() string { return "lastfm" }

// Priority returns the provider's chain position.
func (l *LastFM) Priority() int { return l.priority }

// SetPriority sets the provider's chain position.
func (l *LastFM) SetPriority(n int) { l.priority = n }

func (l *LastFM) enabled() bool {
	return l.cfg.Enabled && l.cfg.APIKey != ""
}

type lfmImage struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

type lfmTag struct {
	Name string `json:"name"`
}

type lfmTags struct {
	Tag []lfmTag `json:"tag"`
}

type lfmWiki struct {
	Summary string `json:"summary"`
}

type lfmAlbumInfo struct {
	Album struct {
		Name   string     `json:"name"`
		Artist string     `json:"artist"`
		MBID   string     `json:"mbid"`
		Image  []lfmImage `json:"image"`
		Tags   lfmTags    `json:"tags"`
		Wiki   lfmWiki    `json:"wiki"`
	} `json:"album"`
}

type lfmArtistInfo struct {
	Artist struct {
		Name  string     `json:"name"`
		MBID  string     `json:"mbid"`
		Image []lfmImage `json:"image"`
		Tags  lfmTags    `json:"tags"`
		Bio   lfmWiki    `json:"bio"`
	} `json:"artist"`
}

func (l *LastFM) methodURL(method string, params map[string]string) string {
	q := url.Values{}
	q.Set("method", method)
	q.Set("api_key", l.cfg.APIKey)
	q.Set("format", "json")
	for k, v := range params {
		q.Set(k, v)
	}
	sep := "?"
	if strings.Contains(l.baseURL, "?") {
		sep = "&"
	}
	return l.baseURL + sep + q.Encode()
}

// AlbumMeta calls album.getinfo and merges name, artist, MBID, tags,
// wiki summary, and the largest cover image.
func (l *LastFM) AlbumMeta(ctx context.Context, key *AlbumKey, existing *AlbumMeta) *AlbumMeta {
	if !l.enabled() {
		return existing
	}
	params := map[string]string{}
	if key.MBID != "" {
		params["mbid"] = key.MBID
	} else if key.Title != "" && key.Artist != "" {
		params["album"] = key.Title
		params["artist"] = key.Artist
	} else {
		return existing
	}

	var info lfmAlbumInfo
	if err := getJSON(ctx, l.client, l.methodURL("album.getinfo", params), &info); err != nil {
		l.logger.Debug().Err(err).Str("album", key.Title).Msg("album.getinfo failed")
		return existing
	}
	if info.Album.Name == "" {
		return existing
	}

	found := &AlbumMeta{
		Title:    info.Album.Name,
		Artist:   info.Album.Artist,
		MBID:     info.Album.MBID,
		Tags:     lfmTagNames(info.Album.Tags),
		Wiki:     strings.TrimSpace(info.Album.Wiki.Summary),
		ImageURL: pickLargestImage(info.Album.Image),
	}
	return MergeAlbum(existing, found)
}

// ArtistMeta calls artist.getinfo and merges name, MBID, tags, bio
// summary, and avatar.
func (l *LastFM) ArtistMeta(ctx context.Context, key *ArtistKey, existing *ArtistMeta) *ArtistMeta {
	if !l.enabled() {
		return existing
	}
	params := map[string]string{}
	if key.MBID != "" {
		params["mbid"] = key.MBID
	} else if key.Name != "" {
		params["artist"] = key.Name
	} else {
		return existing
	}

	var info lfmArtistInfo
	if err := getJSON(ctx, l.client, l.methodURL("artist.getinfo", params), &info); err != nil {
		l.logger.Debug().Err(err).Str("artist", key.Name).Msg("artist.getinfo failed")
		return existing
	}
	if info.Artist.Name == "" {
		return existing
	}

	found := &ArtistMeta{
		Name:      info.Artist.Name,
		MBID:      info.Artist.MBID,
		Tags:      lfmTagNames(info.Artist.Tags),
		Bio:       strings.TrimSpace(info.Artist.Bio.Summary),
		AvatarURL: pickLargestImage(info.Artist.Image),
	}
	return MergeArtist(existing, found)
}

// Lyrics is not provided by Last.fm.
func (l *LastFM) Lyrics(ctx context.Context, key *SongKey) *Lyrics {
	return nil
}

func lfmTagNames(tags lfmTags) []string {
	if len(tags.Tag) == 0 {
		return nil
	}
	names := make([]string, 0, len(tags.Tag))
	for _, t := range tags.Tag {
		names = append(names, t.Name)
	}
	return names
}

// sizeRank orders Last.fm image sizes, largest last.
var sizeRank = map[string]int{
	"small": 1, "medium": 2, "large": 3, "extralarge": 4, "mega": 5,
}

func pickLargestImage(images []lfmImage) string {
	best := ""
	bestRank := 0
	for _, img := range images {
		if img.URL == "" {
			continue
		}
		if r := sizeRank[img.Size]; r >= bestRank {
			best = img.URL
			bestRank = r
		}
	}
	return best
}
