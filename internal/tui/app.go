package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"

	"github.com/cadenza-player/cadenza/internal/player"
	"github.com/cadenza-player/cadenza/pkg/mpd"
)

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often to refresh the display
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate: 100 * time.Millisecond,
	}
}

// Controls is the slice of the daemon client driven by keyboard input
type Controls interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context, paused bool) error
	Stop(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SeekCur(ctx context.Context, pos time.Duration) error
}

// App is the TUI application for the now-playing view
type App struct {
	app        *tview.Application
	nowPlaying *tview.TextView
	progress   *tview.TextView
	spectrum   *tview.TextView
	meta       *tview.TextView
	status     *tview.TextView

	config   Config
	controls Controls

	// Mutex protects shared state accessed by the channel consumer
	// goroutines and the ticker goroutine in handleUpdates.
	mu sync.Mutex

	// Current state (guarded by mu)
	now       player.NowPlaying
	nowAt     time.Time // when the snapshot arrived, for elapsed interpolation
	frame     []float64
	connected bool

	// Last-rendered content for change detection
	lastNowPlaying string
	lastProgress   string
	lastSpectrum   string
	lastMeta       string

	// Cached progress bar width to stabilize change detection.
	lastBarWidth int

	cancelFunc context.CancelFunc
}

// New creates a new TUI application with default config
func New() *App {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new TUI application with the given config
func NewWithConfig(cfg Config) *App {
	a := &App{
		app:    tview.NewApplication(),
		config: cfg,
	}
	a.setupUI()
	return a
}

// SetControls sets the daemon client for playback controls
func (a *App) SetControls(controls Controls) {
	a.controls = controls
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	a.nowPlaying = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.nowPlaying.SetBorder(true).
		SetTitle(" Now Playing ").
		SetTitleAlign(tview.AlignLeft)

	a.progress = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.progress.SetBorder(true)

	a.spectrum = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.spectrum.SetBorder(true).
		SetTitle(" Spectrum ").
		SetTitleAlign(tview.AlignLeft)

	a.meta = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft).
		SetWrap(true)
	a.meta.SetBorder(true).
		SetTitle(" About ").
		SetTitleAlign(tview.AlignLeft)

	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit  space:play/pause  s:stop  n:next  p:prev  ←/→:seek[-]")

	bottomRow := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.spectrum, 0, 2, false).
		AddItem(a.meta, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.nowPlaying, 0, 3, false).
		AddItem(a.progress, 3, 1, false).
		AddItem(bottomRow, 9, 1, false).
		AddItem(a.status, 1, 1, false)

	a.app.SetInputCapture(a.handleKeyEvent)
	a.app.SetRoot(flex, true)
}

// handleKeyEvent processes keyboard input
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	control := func(f func(context.Context) error) {
		if a.controls == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = f(ctx)
	}

	switch event.Key() {
	case tcell.KeyLeft:
		control(func(ctx context.Context) error { return a.seekBy(ctx, -5*time.Second) })
		return nil
	case tcell.KeyRight:
		control(func(ctx context.Context) error { return a.seekBy(ctx, 5*time.Second) })
		return nil
	}

	switch event.Rune() {
	case 'q', 'Q':
		a.app.Stop()
		return nil
	case ' ':
		control(a.togglePause)
		return nil
	case 's', 'S':
		control(func(ctx context.Context) error { return a.controls.Stop(ctx) })
		return nil
	case 'n', 'N':
		control(func(ctx context.Context) error { return a.controls.Next(ctx) })
		return nil
	case 'p', 'P':
		control(func(ctx context.Context) error { return a.controls.Previous(ctx) })
		return nil
	}
	return event
}

func (a *App) togglePause(ctx context.Context) error {
	a.mu.Lock()
	st := a.now.Status
	a.mu.Unlock()

	if st == nil || st.State == mpd.StateStopped {
		return a.controls.Play(ctx)
	}
	return a.controls.Pause(ctx, st.State == mpd.StatePlaying)
}

func (a *App) seekBy(ctx context.Context, delta time.Duration) error {
	a.mu.Lock()
	pos := a.elapsedLocked() + delta
	a.mu.Unlock()
	if pos < 0 {
		pos = 0
	}
	return a.controls.SeekCur(ctx, pos)
}

// Run starts the TUI, consuming now-playing snapshots and spectrum
// frames until it is stopped.
func (a *App) Run(ctx context.Context, updates <-chan player.NowPlaying, frames <-chan []float64) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)

	go a.handleUpdates(ctx, updates, frames)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// handleUpdates splits work into consumer goroutines that only record
// state, and a single ticker that drives all redraws to prevent queued
// redraw buildup.
func (a *App) handleUpdates(ctx context.Context, updates <-chan player.NowPlaying, frames <-chan []float64) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case np := <-updates:
				a.mu.Lock()
				a.now = np
				a.nowAt = time.Now()
				a.connected = np.Status != nil
				a.mu.Unlock()
			}
		}
	}()

	if frames != nil {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case frame := <-frames:
					a.mu.Lock()
					a.frame = frame
					a.mu.Unlock()
				}
			}
		}()
	}

	refreshRate := a.config.RefreshRate
	if refreshRate <= 0 {
		refreshRate = 100 * time.Millisecond
	}
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			a.refresh()
		}
	}
}

// refresh updates all UI components
func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.updateNowPlaying()
		a.updateProgress()
		a.updateSpectrum()
		a.updateMeta()
	})
}

// elapsedLocked interpolates the playback position between status
// snapshots. Must be called with a.mu held.
func (a *App) elapsedLocked() time.Duration {
	st := a.now.Status
	if st == nil {
		return 0
	}
	elapsed := st.Elapsed
	if st.State == mpd.StatePlaying {
		elapsed += time.Since(a.nowAt)
	}
	if st.Duration > 0 && elapsed > st.Duration {
		elapsed = st.Duration
	}
	return elapsed
}

// updateNowPlaying updates the now playing panel
func (a *App) updateNowPlaying() {
	var text string

	song, st := a.now.Song, a.now.Status
	switch {
	case !a.connected:
		text = "\n\n[gray]Not connected[-]"
	case song == nil || st == nil || st.State == mpd.StateStopped:
		text = "\n\n[gray]Stopped[-]"
	default:
		var sb strings.Builder
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]\n", tview.Escape(truncate(song.DisplayName(), 60))))
		sb.WriteString(fmt.Sprintf("[yellow]%s[-]\n", tview.Escape(truncate(song.Artist, 60))))
		sb.WriteString(fmt.Sprintf("[gray]%s[-]", tview.Escape(truncate(song.Album, 60))))

		stateIcon := "[green]▶[-]"
		if st.State == mpd.StatePaused {
			stateIcon = "[yellow]⏸[-]"
		}
		sb.WriteString(fmt.Sprintf("\n\n%s", stateIcon))
		text = sb.String()
	}

	if text != a.lastNowPlaying {
		a.lastNowPlaying = text
		a.nowPlaying.SetText(text)
	}
}

// updateProgress updates the elapsed bar
func (a *App) updateProgress() {
	var text string

	st := a.now.Status
	if st == nil || st.State == mpd.StateStopped {
		text = ""
	} else {
		_, _, width, _ := a.progress.GetInnerRect()
		barWidth := width - 14 // Account for time display
		if barWidth > 0 {
			a.lastBarWidth = barWidth
		}
		if a.lastBarWidth < 10 {
			a.lastBarWidth = 10
		}

		elapsed := a.elapsedLocked()
		bar := buildProgressBar(elapsed, st.Duration, a.lastBarWidth)
		text = fmt.Sprintf("%s %s %s", formatDuration(elapsed), bar, formatDuration(st.Duration))
	}

	if text != a.lastProgress {
		a.lastProgress = text
		a.progress.SetText(text)
	}
}

// Eighth-height block characters, lowest to tallest.
var blocks = []rune(" ▁▂▃▄▅▆▇█")

// updateSpectrum renders one row of bars from the latest frame
func (a *App) updateSpectrum() {
	var text string

	if len(a.frame) == 0 || a.now.Status == nil || a.now.Status.State != mpd.StatePlaying {
		text = "[gray]" + strings.Repeat("▁", 24) + "[-]"
	} else {
		peak := 0.0
		for _, v := range a.frame {
			if v > peak {
				peak = v
			}
		}
		if peak < 0.05 {
			peak = 0.05
		}
		var sb strings.Builder
		sb.WriteString("[green]")
		for _, v := range a.frame {
			idx := int(v / peak * float64(len(blocks)-1))
			if idx >= len(blocks) {
				idx = len(blocks) - 1
			}
			sb.WriteRune(blocks[idx])
		}
		sb.WriteString("[-]")
		text = sb.String()
	}

	if text != a.lastSpectrum {
		a.lastSpectrum = text
		a.spectrum.SetText(text)
	}
}

// updateMeta updates the album/artist blurb panel
func (a *App) updateMeta() {
	var sb strings.Builder

	switch {
	case a.now.Album != nil && a.now.Album.Wiki != "":
		sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]\n", tview.Escape(a.now.Album.Title)))
		if a.now.Album.ReleaseDate != "" {
			sb.WriteString(fmt.Sprintf("[gray]%s[-]\n", tview.Escape(a.now.Album.ReleaseDate)))
		}
		sb.WriteString(tview.Escape(truncate(a.now.Album.Wiki, 400)))
	case a.now.Artist != nil && a.now.Artist.Bio != "":
		sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]\n", tview.Escape(a.now.Artist.Name)))
		sb.WriteString(tview.Escape(truncate(a.now.Artist.Bio, 400)))
	default:
		sb.WriteString("[gray]No metadata[-]")
	}

	text := sb.String()
	if text != a.lastMeta {
		a.lastMeta = text
		a.meta.SetText(text)
	}
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

// truncate shortens a string to the given display width.
func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "...")
}

// buildProgressBar creates a text-based progress bar
func buildProgressBar(position, duration time.Duration, width int) string {
	if duration == 0 || width <= 0 {
		return strings.Repeat("-", width)
	}

	progress := float64(position) / float64(duration)
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}

	filled := int(progress * float64(width))
	empty := width - filled

	bar := "[green]" + strings.Repeat("█", filled) + "[-]" +
		"[gray]" + strings.Repeat("░", empty) + "[-]"

	return bar
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
