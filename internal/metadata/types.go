// Package metadata enriches albums, artists, and songs with data from
// third-party web services.
//
// Lookups run through an ordered chain of providers. Each provider may
// fill in fields the previous ones left empty and may append stable
// identifiers (MusicBrainz ids) to the lookup key so later providers can
// pivot on them. Provider failures are contained: a provider that cannot
// answer passes the running result through unchanged.
package metadata

import (
	"time"
)

// AlbumKey identifies an album for lookup. The key is mutable during
// chain traversal: a provider that learns the MBID writes it back so
// later providers can search by it.
type AlbumKey struct {
	Title  string
	Artist string
	MBID   string
}

// ArtistKey identifies an artist for lookup.
type ArtistKey struct {
	Name string
	MBID string
}

// SongKey identifies a song for lyrics lookup. Duration disambiguates
// between candidate matches.
type SongKey struct {
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
	MBID     string
}

// AlbumMeta is the accumulating result document for an album. Fields are
// independently optional; the chain only ever adds to it.
type AlbumMeta struct {
	Title       string
	Artist      string
	MBID        string
	ReleaseDate string
	Tags        []string
	Wiki        string
	ImageURL    string
}

// ArtistMeta is the accumulating result document for an artist.
type ArtistMeta struct {
	Name      string
	MBID      string
	Tags      []string
	Bio       string
	AvatarURL string
}

// Lyrics is a lyrics lookup result.
type Lyrics struct {
	Synced bool   // true when Text carries timestamped lines
	Text   string
}

// MergeAlbum fills missing fields of old from new. Fields already
// populated in old always win; nothing is ever removed. Either side may
// be nil.
func MergeAlbum(old, new *AlbumMeta) *AlbumMeta {
	if old == nil {
		return new
	}
	if new == nil {
		return old
	}
	if old.Title == "" {
		old.Title = new.Title
	}
	if old.Artist == "" {
		old.Artist = new.Artist
	}
	if old.MBID == "" {
		old.MBID = new.MBID
	}
	if old.ReleaseDate == "" {
		old.ReleaseDate = new.ReleaseDate
	}
	if len(old.Tags) == 0 {
		old.Tags = new.Tags
	}
	if old.Wiki == "" {
		old.Wiki = new.Wiki
	}
	if old.ImageURL == "" {
		old.ImageURL = new.ImageURL
	}
	return old
}

// MergeArtist fills missing fields of old from new, like MergeAlbum.
func MergeArtist(old, new *ArtistMeta) *ArtistMeta {
	if old == nil {
		return new
	}
	if new == nil {
		return old
	}
	if old.Name == "" {
		old.Name = new.Name
	}
	if old.MBID == "" {
		old.MBID = new.MBID
	}
	if len(old.Tags) == 0 {
		old.Tags = new.Tags
	}
	if old.Bio == "" {
		old.Bio = new.Bio
	}
	if old.AvatarURL == "" {
		old.AvatarURL = new.AvatarURL
	}
	return old
}
