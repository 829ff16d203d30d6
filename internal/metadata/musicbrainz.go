package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultMusicBrainzURL is the production MusicBrainz web service root.
const DefaultMusicBrainzURL = "https://musicbrainz.org/ws/2"

// commonsThumbWidth is the fixed width requested from the Wikimedia
// thumbnail delivery endpoint for artist images.
const commonsThumbWidth = 512

// MusicBrainzConfig configures the MusicBrainz provider.
type MusicBrainzConfig struct {
	Enabled        bool
	DownloadAvatar bool         // fetch pictorial relations for artists
	BaseURL        string       // Optional: override for testing
	HTTPClient     *http.Client // Optional
	Logger         zerolog.Logger
}

// MusicBrainz searches the MusicBrainz database by MBID when the key
// carries one, else by artist and release name. It is usually the first
// provider in the chain because it discovers the MBID the others pivot
// on.
type MusicBrainz struct {
	cfg      MusicBrainzConfig
	priority int
	client   *http.Client
	baseURL  string
	logger   zerolog.Logger
}

// NewMusicBrainz creates the provider.
func NewMusicBrainz(cfg MusicBrainzConfig) *MusicBrainz {
	client := cfg.HTTPClient
	if client == nil {
		client = newHTTPClient()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultMusicBrainzURL
	}
	return &MusicBrainz{
		cfg:     cfg,
		client:  client,
		baseURL: baseURL,
		logger:  cfg.Logger.With().Str("provider", "musicbrainz").Logger(),
	}
}

// Key returns the provider's registration key.
func (m *MusicBrainz) Key() string { return "musicbrainz" }

// Priority returns the provider's chain position.
func (m *MusicBrainz) Priority() int { return m.priority }

// SetPriority sets the provider's chain position.
func (m *MusicBrainz) SetPriority(n int) { m.priority = n }

type mbTag struct {
	Name string `json:"name"`
}

type mbArtistCredit struct {
	Name string `json:"name"`
}

type mbReleaseGroup struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	FirstReleaseDate string           `json:"first-release-date"`
	Tags             []mbTag          `json:"tags"`
	ArtistCredit     []mbArtistCredit `json:"artist-credit"`
}

type mbReleaseGroupSearch struct {
	ReleaseGroups []mbReleaseGroup `json:"release-groups"`
}

type mbRelationURL struct {
	Resource string `json:"resource"`
}

type mbRelation struct {
	Type string        `json:"type"`
	URL  mbRelationURL `json:"url"`
}

type mbArtist struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Tags      []mbTag      `json:"tags"`
	Relations []mbRelation `json:"relations"`
}

type mbArtistSearch struct {
	Artists []mbArtist `json:"artists"`
}

// AlbumMeta resolves a release group by MBID or by a title+artist
// search, and merges title, artist, release date, and tags.
func (m *MusicBrainz) AlbumMeta(ctx context.Context, key *AlbumKey, existing *AlbumMeta) *AlbumMeta {
	if !m.cfg.Enabled {
		return existing
	}

	var rg *mbReleaseGroup
	if key.MBID != "" {
		var doc mbReleaseGroup
		u := fmt.Sprintf("%s/release-group/%s?inc=tags&fmt=json", m.baseURL, url.PathEscape(key.MBID))
		if err := getJSON(ctx, m.client, u, &doc); err != nil {
			m.logger.Debug().Err(err).Str("mbid", key.MBID).Msg("Release group lookup failed")
			return existing
		}
		rg = &doc
	} else {
		if key.Title == "" || key.Artist == "" {
			return existing
		}
		query := fmt.Sprintf("releasegroup:%q AND artist:%q", key.Title, key.Artist)
		u := fmt.Sprintf("%s/release-group?query=%s&limit=1&fmt=json", m.baseURL, url.QueryEscape(query))
		var search mbReleaseGroupSearch
		if err := getJSON(ctx, m.client, u, &search); err != nil {
			m.logger.Debug().Err(err).Str("album", key.Title).Msg("Release group search failed")
			return existing
		}
		if len(search.ReleaseGroups) == 0 {
			return existing
		}
		rg = &search.ReleaseGroups[0]
	}

	found := &AlbumMeta{
		Title:       rg.Title,
		MBID:        rg.ID,
		ReleaseDate: rg.FirstReleaseDate,
		Tags:        tagNames(rg.Tags),
	}
	if len(rg.ArtistCredit) > 0 {
		found.Artist = rg.ArtistCredit[0].Name
	}
	return MergeAlbum(existing, found)
}

// ArtistMeta resolves an artist by MBID or name search. When avatar
// download is enabled, pictorial URL relations (type image or picture)
// are followed and Wikimedia Commons pages rewritten to the thumbnail
// delivery endpoint.
func (m *MusicBrainz) ArtistMeta(ctx context.Context, key *ArtistKey, existing *ArtistMeta) *ArtistMeta {
	if !m.cfg.Enabled {
		return existing
	}

	mbid := key.MBID
	if mbid == "" {
		if key.Name == "" {
			return existing
		}
		u := fmt.Sprintf("%s/artist?query=%s&limit=1&fmt=json", m.baseURL, url.QueryEscape(fmt.Sprintf("artist:%q", key.Name)))
		var search mbArtistSearch
		if err := getJSON(ctx, m.client, u, &search); err != nil {
			m.logger.Debug().Err(err).Str("artist", key.Name).Msg("Artist search failed")
			return existing
		}
		if len(search.Artists) == 0 {
			return existing
		}
		mbid = search.Artists[0].ID
	}

	inc := "tags"
	if m.cfg.DownloadAvatar {
		inc = "tags+url-rels"
	}
	var artist mbArtist
	u := fmt.Sprintf("%s/artist/%s?inc=%s&fmt=json", m.baseURL, url.PathEscape(mbid), inc)
	if err := getJSON(ctx, m.client, u, &artist); err != nil {
		m.logger.Debug().Err(err).Str("mbid", mbid).Msg("Artist lookup failed")
		return existing
	}

	found := &ArtistMeta{
		Name: artist.Name,
		MBID: artist.ID,
		Tags: tagNames(artist.Tags),
	}
	if m.cfg.DownloadAvatar {
		found.AvatarURL = pickArtistImage(artist.Relations)
	}
	return MergeArtist(existing, found)
}

// Lyrics is not provided by MusicBrainz.
func (m *MusicBrainz) Lyrics(ctx context.Context, key *SongKey) *Lyrics {
	return nil
}

func tagNames(tags []mbTag) []string {
	if len(tags) == 0 {
		return nil
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}

// imageHosts are the recognised hosts for pictorial relations.
var imageHosts = []string{
	"commons.wikimedia.org",
	"i.discogs.com",
	"staticbrainz.org",
}

func pickArtistImage(relations []mbRelation) string {
	for _, rel := range relations {
		if rel.Type != "image" && rel.Type != "picture" {
			continue
		}
		u, err := url.Parse(rel.URL.Resource)
		if err != nil {
			continue
		}
		for _, host := range imageHosts {
			if u.Host == host {
				return rewriteCommonsURL(rel.URL.Resource)
			}
		}
	}
	return ""
}

// rewriteCommonsURL turns a Wikimedia Commons file page into its
// thumbnail delivery endpoint at a fixed width. Other URLs pass through
// untouched.
func rewriteCommonsURL(raw string) string {
	const filePage = "https://commons.wikimedia.org/wiki/File:"
	name, ok := strings.CutPrefix(raw, filePage)
	if !ok {
		return raw
	}
	return fmt.Sprintf("https://commons.wikimedia.org/wiki/Special:FilePath/%s?width=%d", name, commonsThumbWidth)
}
