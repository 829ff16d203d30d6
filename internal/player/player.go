// Package player coordinates the daemon client, the metadata chain,
// and the album-art cache into one now-playing state consumed by the
// CLI and the TUI.
package player

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cadenza-player/cadenza/internal/artcache"
	"github.com/cadenza-player/cadenza/internal/metadata"
	"github.com/cadenza-player/cadenza/pkg/mpd"
)

// Config holds player configuration
type Config struct {
	// DownloadAlbumArt enables fetching missing artwork from the
	// daemon into the cache
	DownloadAlbumArt bool
}

// Daemon is the slice of the daemon client the player depends on
type Daemon interface {
	Events() <-chan mpd.Event
	Status(ctx context.Context) (*mpd.Status, error)
	CurrentSong(ctx context.Context) (*mpd.Song, error)
	AlbumArt(ctx context.Context, uri string) (*mpd.Art, error)
}

// NowPlaying is a snapshot of everything known about the current song
type NowPlaying struct {
	Song   *mpd.Song
	Status *mpd.Status

	Album  *metadata.AlbumMeta
	Artist *metadata.ArtistMeta

	// Cached artwork paths; empty until the art is on disk
	ArtPath   string
	ThumbPath string
}

// Player subscribes to daemon events and keeps the now-playing
// snapshot current
type Player struct {
	config Config
	client Daemon
	chain  *metadata.Chain
	art    *artcache.Cache
	logger zerolog.Logger

	mu      sync.Mutex
	current NowPlaying

	updates chan NowPlaying
}

// New creates a new Player instance
func New(cfg Config, client Daemon, chain *metadata.Chain, art *artcache.Cache, logger zerolog.Logger) *Player {
	return &Player{
		config:  cfg,
		client:  client,
		chain:   chain,
		art:     art,
		logger:  logger.With().Str("component", "player").Logger(),
		updates: make(chan NowPlaying, 1),
	}
}

// Updates delivers now-playing snapshots most-recent-wins: a slow
// consumer sees the newest state, not a backlog.
func (p *Player) Updates() <-chan NowPlaying { return p.updates }

// Now returns the latest snapshot.
func (p *Player) Now() NowPlaying {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Run consumes daemon events until the context is cancelled. It
// refreshes once at startup so consumers have state before the first
// event arrives.
func (p *Player) Run(ctx context.Context) error {
	p.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-p.client.Events():
			if !ok {
				return nil
			}
			switch ev.Subsystem {
			case "player", "playlist":
				p.refresh(ctx)
			case mpd.SubsystemConnection:
				if ev.State == mpd.Connected {
					p.refresh(ctx)
				} else {
					p.clear()
				}
			}
		}
	}
}

func (p *Player) clear() {
	p.mu.Lock()
	p.current = NowPlaying{}
	snapshot := p.current
	p.mu.Unlock()
	p.publish(snapshot)
}

func (p *Player) refresh(ctx context.Context) {
	status, err := p.client.Status(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to query status")
		return
	}
	song, err := p.client.CurrentSong(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to query current song")
		return
	}

	p.mu.Lock()
	previous := p.current.Song
	next := NowPlaying{Song: song, Status: status}
	if song != nil && previous != nil && song.File == previous.File {
		// Same song; carry the enrichment forward
		next.Album = p.current.Album
		next.Artist = p.current.Artist
		next.ArtPath = p.current.ArtPath
		next.ThumbPath = p.current.ThumbPath
	}
	p.current = next
	p.mu.Unlock()
	p.publish(next)

	if song == nil {
		return
	}
	if previous == nil || song.File != previous.File {
		p.enrich(ctx, song)
	}
}

// enrich fills in artwork and metadata for a newly current song.
func (p *Player) enrich(ctx context.Context, song *mpd.Song) {
	artPath, thumbPath := p.fetchArt(ctx, song)

	var album *metadata.AlbumMeta
	var artist *metadata.ArtistMeta
	artistName := song.AlbumArtist
	if artistName == "" {
		artistName = song.Artist
	}
	if song.Album != "" && artistName != "" {
		album = p.chain.AlbumMeta(ctx, &metadata.AlbumKey{Title: song.Album, Artist: artistName})
	}
	if artistName != "" {
		artist = p.chain.ArtistMeta(ctx, &metadata.ArtistKey{Name: artistName})
	}

	p.mu.Lock()
	if p.current.Song == nil || p.current.Song.File != song.File {
		// The song changed while we were fetching; drop the result
		p.mu.Unlock()
		return
	}
	p.current.Album = album
	p.current.Artist = artist
	p.current.ArtPath = artPath
	p.current.ThumbPath = thumbPath
	snapshot := p.current
	p.mu.Unlock()
	p.publish(snapshot)
}

func (p *Player) fetchArt(ctx context.Context, song *mpd.Song) (string, string) {
	folder := song.FolderURI()
	if full, thumb, ok := p.art.Probe(folder); ok {
		return full, thumb
	}
	if !p.config.DownloadAlbumArt {
		return "", ""
	}

	art, err := p.client.AlbumArt(ctx, song.File)
	if err != nil {
		p.logger.Debug().Err(err).Str("uri", song.File).Msg("No artwork from daemon")
		return "", ""
	}
	full, thumb, err := p.art.Store(folder, art.Data)
	if err != nil {
		p.logger.Warn().Err(err).Str("uri", song.File).Msg("Failed to cache artwork")
		return "", ""
	}
	return full, thumb
}

// publish replaces any undelivered snapshot.
func (p *Player) publish(snapshot NowPlaying) {
	select {
	case p.updates <- snapshot:
	default:
		select {
		case <-p.updates:
		default:
		}
		select {
		case p.updates <- snapshot:
		default:
		}
	}
}
