package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	MPD        MPDConfig
	Visualizer VisualizerConfig
	Providers  ProvidersConfig

	// Structured log destination; empty logs to stderr
	LogFile  string
	LogLevel string

	// Root directory for the album-art and metadata caches
	CacheRoot string
}

// MPDConfig selects the daemon transport and client behaviour
type MPDConfig struct {
	UseUnixSocket    bool
	UnixSocket       string
	Host             string
	Port             int
	DownloadAlbumArt bool

	// FIFO PCM tap used by the visualizer's fifo source
	FIFOPath   string
	FIFOFormat string
}

// Network and Address translate the transport selection into dial
// arguments.
func (m MPDConfig) Network() string {
	if m.UseUnixSocket {
		return "unix"
	}
	return "tcp"
}

func (m MPDConfig) Address() string {
	if m.UseUnixSocket {
		return m.UnixSocket
	}
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// VisualizerConfig tunes the spectrum pipeline
type VisualizerConfig struct {
	Source       string // "fifo" or "system-audio"
	Device       string // system-audio only; empty selects the default
	FPS          int
	FFTSamples   int
	SpectrumBins int
}

// ProvidersConfig configures the metadata chain
type ProvidersConfig struct {
	// Order lists provider keys from highest to lowest priority
	Order       []string
	MusicBrainz ProviderConfig
	LastFM      ProviderConfig
	LRCLIB      ProviderConfig
}

// ProviderConfig holds per-provider switches
type ProviderConfig struct {
	Enabled              bool
	DownloadAlbumArt     bool
	DownloadArtistAvatar bool
	APIKey               string
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getConfigDir())
	v.AddConfigPath(".")

	v.SetDefault("mpd-use-unix-socket", false)
	v.SetDefault("mpd-unix-socket", "/run/mpd/socket")
	v.SetDefault("mpd-host", "localhost")
	v.SetDefault("mpd-port", 6600)
	v.SetDefault("mpd-download-album-art", true)
	v.SetDefault("mpd-fifo-path", "/tmp/mpd.fifo")
	v.SetDefault("mpd-fifo-format", "44100:16:2")
	v.SetDefault("mpd-visualizer-pcm-source", "fifo")

	v.SetDefault("visualizer-device", "")
	v.SetDefault("visualizer-fps", 30)
	v.SetDefault("visualizer-fft-samples", 1024)
	v.SetDefault("visualizer-spectrum-bins", 24)

	v.SetDefault("metaprovider.order", []string{"musicbrainz", "lastfm", "lrclib"})
	v.SetDefault("metaprovider.musicbrainz.enabled", true)
	v.SetDefault("metaprovider.musicbrainz.download-artist-avatar", false)
	v.SetDefault("metaprovider.lastfm.enabled", true)
	v.SetDefault("metaprovider.lrclib.enabled", true)

	v.SetDefault("log-file", "")
	v.SetDefault("log-level", "info")
	v.SetDefault("cache-root", getCacheDir())

	v.SetEnvPrefix("CADENZA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	return v
}

func fromViper(v *viper.Viper) *Config {
	provider := func(key string) ProviderConfig {
		return ProviderConfig{
			Enabled:              v.GetBool("metaprovider." + key + ".enabled"),
			DownloadAlbumArt:     v.GetBool("metaprovider." + key + ".download-album-art"),
			DownloadArtistAvatar: v.GetBool("metaprovider." + key + ".download-artist-avatar"),
			APIKey:               v.GetString("metaprovider." + key + ".api-key"),
		}
	}
	return &Config{
		MPD: MPDConfig{
			UseUnixSocket:    v.GetBool("mpd-use-unix-socket"),
			UnixSocket:       v.GetString("mpd-unix-socket"),
			Host:             v.GetString("mpd-host"),
			Port:             v.GetInt("mpd-port"),
			DownloadAlbumArt: v.GetBool("mpd-download-album-art"),
			FIFOPath:         v.GetString("mpd-fifo-path"),
			FIFOFormat:       v.GetString("mpd-fifo-format"),
		},
		Visualizer: VisualizerConfig{
			Source:       v.GetString("mpd-visualizer-pcm-source"),
			Device:       v.GetString("visualizer-device"),
			FPS:          v.GetInt("visualizer-fps"),
			FFTSamples:   v.GetInt("visualizer-fft-samples"),
			SpectrumBins: v.GetInt("visualizer-spectrum-bins"),
		},
		Providers: ProvidersConfig{
			Order:       v.GetStringSlice("metaprovider.order"),
			MusicBrainz: provider("musicbrainz"),
			LastFM:      provider("lastfm"),
			LRCLIB:      provider("lrclib"),
		},
		LogFile:   v.GetString("log-file"),
		LogLevel:  v.GetString("log-level"),
		CacheRoot: v.GetString("cache-root"),
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := newViper()

	// Config file is optional - don't fail if missing
	_ = v.ReadInConfig()

	return fromViper(v), nil
}

// Watch reads the configuration and invokes onChange with a freshly
// built Config every time the file changes on disk. The initial
// configuration is returned directly.
func Watch(onChange func(*Config)) (*Config, error) {
	v := newViper()
	_ = v.ReadInConfig()

	v.OnConfigChange(func(fsnotify.Event) {
		onChange(fromViper(v))
	})
	v.WatchConfig()

	return fromViper(v), nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "cadenza")
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

func getCacheDir() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "."
	}
	return filepath.Join(cacheDir, "cadenza")
}
