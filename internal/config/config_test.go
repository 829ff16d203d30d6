package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MPD.Host != "localhost" || cfg.MPD.Port != 6600 {
		t.Errorf("mpd defaults = %+v", cfg.MPD)
	}
	if cfg.MPD.Network() != "tcp" || cfg.MPD.Address() != "localhost:6600" {
		t.Errorf("dial args = %s %s", cfg.MPD.Network(), cfg.MPD.Address())
	}
	if cfg.Visualizer.Source != "fifo" || cfg.Visualizer.FPS != 30 {
		t.Errorf("visualizer defaults = %+v", cfg.Visualizer)
	}
	if len(cfg.Providers.Order) != 3 || cfg.Providers.Order[0] != "musicbrainz" {
		t.Errorf("provider order = %v", cfg.Providers.Order)
	}
	if !cfg.Providers.LRCLIB.Enabled {
		t.Error("lrclib disabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CADENZA_MPD_HOST", "music.local")
	t.Setenv("CADENZA_MPD_PORT", "6601")
	t.Setenv("CADENZA_MPD_USE_UNIX_SOCKET", "true")
	t.Setenv("CADENZA_MPD_UNIX_SOCKET", "/tmp/mpd.sock")
	t.Setenv("CADENZA_VISUALIZER_FFT_SAMPLES", "2048")
	t.Setenv("CADENZA_METAPROVIDER_LASTFM_API_KEY", "k")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MPD.Host != "music.local" || cfg.MPD.Port != 6601 {
		t.Errorf("mpd = %+v", cfg.MPD)
	}
	if cfg.MPD.Network() != "unix" || cfg.MPD.Address() != "/tmp/mpd.sock" {
		t.Errorf("dial args = %s %s", cfg.MPD.Network(), cfg.MPD.Address())
	}
	if cfg.Visualizer.FFTSamples != 2048 {
		t.Errorf("fft samples = %d", cfg.Visualizer.FFTSamples)
	}
	if cfg.Providers.LastFM.APIKey != "k" {
		t.Errorf("lastfm key = %q", cfg.Providers.LastFM.APIKey)
	}
}
