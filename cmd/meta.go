package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cadenza-player/cadenza/internal/config"
	"github.com/cadenza-player/cadenza/internal/metadata"
	"github.com/cadenza-player/cadenza/pkg/mpd"
)

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Look up metadata for the current song",
	Long: `Look up album, artist, or lyrics metadata.

Providers are queried in the configured order (metaprovider.order) and
their results merged; results are cached on disk under the cache root.
With no arguments the lookups target the currently playing song.`,
}

var metaAlbumCmd = &cobra.Command{
	Use:   "album [artist] [title]",
	Short: "Show album metadata",
	Args:  cobra.RangeArgs(0, 2),
	RunE:  runMetaAlbum,
}

var metaArtistCmd = &cobra.Command{
	Use:   "artist [name]",
	Short: "Show artist metadata",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMetaArtist,
}

var metaLyricsCmd = &cobra.Command{
	Use:   "lyrics",
	Short: "Show lyrics for the current song",
	RunE:  runMetaLyrics,
}

func init() {
	metaCmd.AddCommand(metaAlbumCmd)
	metaCmd.AddCommand(metaArtistCmd)
	metaCmd.AddCommand(metaLyricsCmd)
	rootCmd.AddCommand(metaCmd)
}

// buildChain assembles the provider chain from configuration.
func buildChain(cfg *config.Config, logger zerolog.Logger) *metadata.Chain {
	chain := metadata.NewChain(logger,
		metadata.NewMusicBrainz(metadata.MusicBrainzConfig{
			Enabled:        cfg.Providers.MusicBrainz.Enabled,
			DownloadAvatar: cfg.Providers.MusicBrainz.DownloadArtistAvatar,
			Logger:         logger,
		}),
		metadata.NewLastFM(metadata.LastFMConfig{
			Enabled: cfg.Providers.LastFM.Enabled,
			APIKey:  cfg.Providers.LastFM.APIKey,
			Logger:  logger,
		}),
		metadata.NewLRCLIB(metadata.LRCLIBConfig{
			Enabled: cfg.Providers.LRCLIB.Enabled,
			Logger:  logger,
		}),
	)
	chain.SetOrder(cfg.Providers.Order)

	cache, err := metadata.NewCache(filepath.Join(cfg.CacheRoot, "metadata.db"))
	if err != nil {
		logger.Warn().Err(err).Msg("Metadata cache unavailable, lookups will not persist")
	} else {
		chain.SetCache(cache)
	}
	return chain
}

// currentSongKey queries the daemon for the playing song.
func currentSongKey(ctx context.Context) (*mpd.Song, *config.Config, error) {
	client, cfg, err := connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer client.Disconnect()

	song, err := client.CurrentSong(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query current song: %w", err)
	}
	if song == nil {
		return nil, nil, fmt.Errorf("nothing playing")
	}
	return song, cfg, nil
}

func songArtist(song *mpd.Song) string {
	if song.AlbumArtist != "" {
		return song.AlbumArtist
	}
	return song.Artist
}

func runMetaAlbum(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var key metadata.AlbumKey
	var cfg *config.Config
	switch len(args) {
	case 2:
		key = metadata.AlbumKey{Artist: args[0], Title: args[1]}
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
	default:
		song, loaded, err := currentSongKey(ctx)
		if err != nil {
			return err
		}
		if song.Album == "" {
			return fmt.Errorf("current song has no album tag")
		}
		key = metadata.AlbumKey{Artist: songArtist(song), Title: song.Album}
		cfg = loaded
	}

	chain := buildChain(cfg, newLogger(cfg, false))
	album := chain.AlbumMeta(ctx, &key)
	if album == nil {
		return fmt.Errorf("no metadata found for %s - %s", key.Artist, key.Title)
	}

	fmt.Printf("%s - %s\n", album.Artist, album.Title)
	if album.MBID != "" {
		fmt.Printf("MBID:     %s\n", album.MBID)
	}
	if album.ReleaseDate != "" {
		fmt.Printf("Released: %s\n", album.ReleaseDate)
	}
	if len(album.Tags) > 0 {
		fmt.Printf("Tags:     %s\n", strings.Join(album.Tags, ", "))
	}
	if album.Wiki != "" {
		fmt.Printf("\n%s\n", album.Wiki)
	}
	return nil
}

func runMetaArtist(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var key metadata.ArtistKey
	var cfg *config.Config
	if len(args) == 1 {
		key = metadata.ArtistKey{Name: args[0]}
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
	} else {
		song, loaded, err := currentSongKey(ctx)
		if err != nil {
			return err
		}
		key = metadata.ArtistKey{Name: songArtist(song)}
		cfg = loaded
	}
	if key.Name == "" {
		return fmt.Errorf("no artist to look up")
	}

	chain := buildChain(cfg, newLogger(cfg, false))
	artist := chain.ArtistMeta(ctx, &key)
	if artist == nil {
		return fmt.Errorf("no metadata found for %s", key.Name)
	}

	fmt.Println(artist.Name)
	if artist.MBID != "" {
		fmt.Printf("MBID: %s\n", artist.MBID)
	}
	if len(artist.Tags) > 0 {
		fmt.Printf("Tags: %s\n", strings.Join(artist.Tags, ", "))
	}
	if artist.Bio != "" {
		fmt.Printf("\n%s\n", artist.Bio)
	}
	return nil
}

func runMetaLyrics(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	song, cfg, err := currentSongKey(ctx)
	if err != nil {
		return err
	}

	chain := buildChain(cfg, newLogger(cfg, false))
	lyrics := chain.Lyrics(ctx, &metadata.SongKey{
		Title:    song.DisplayName(),
		Artist:   songArtist(song),
		Album:    song.Album,
		Duration: song.Duration,
	})
	if lyrics == nil {
		return fmt.Errorf("no lyrics found for %s", song.DisplayName())
	}

	fmt.Println(lyrics.Text)
	return nil
}
