package mpd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeDaemon is a scripted daemon on the far end of a net.Pipe. It
// handles the handshake, the capability probe, and the idle channel
// generically; everything else is dispatched to the per-test handler.
type fakeDaemon struct {
	t *testing.T

	conn net.Conn
	r    *bufio.Reader

	// Advertised command set. Defaults to a full-featured daemon.
	commands []string

	// albumProbeACK is the error line answering the album sticker level
	// trial. Empty means "no such sticker" (full support).
	albumProbeACK string

	// password, when set, is required before any other command.
	password string

	// handle answers one command with a complete response (including the
	// OK/ACK terminator). Nil or returning "" fails the test.
	handle func(cmd string, args []string) string

	mu       sync.Mutex
	idling   bool
	rawLines []string

	gotIdle chan struct{}
}

func defaultCommands() []string {
	return []string{
		"play", "pause", "stop", "next", "previous", "seekcur",
		"status", "currentsong", "playlistinfo", "add", "delete",
		"lsinfo", "search", "listplaylists", "load", "save",
		"sticker", "albumart", "readpicture", "idle", "noidle",
	}
}

func (d *fakeDaemon) write(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conn.Write([]byte(s))
}

// Notify emits an idle notification. Callers must have observed gotIdle
// first so the client is actually idling.
func (d *fakeDaemon) Notify(subsystem string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.idling {
		d.t.Errorf("Notify(%q) while client not idling", subsystem)
		return
	}
	d.idling = false
	d.conn.Write([]byte("changed: " + subsystem + "\nOK\n"))
}

// RawLines returns every request line received so far.
func (d *fakeDaemon) RawLines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.rawLines...)
}

func (d *fakeDaemon) serve() {
	d.write("OK MPD 0.23.5\n")
	authed := d.password == ""
	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSuffix(line, "\n")
		d.mu.Lock()
		d.rawLines = append(d.rawLines, line)
		d.mu.Unlock()

		cmd, args := parseRequestLine(line)
		switch cmd {
		case "idle":
			d.mu.Lock()
			d.idling = true
			d.mu.Unlock()
			select {
			case d.gotIdle <- struct{}{}:
			default:
			}
			// No response until noidle or Notify.
		case "noidle":
			// Like the real daemon: answer only when actually idling; a
			// noidle racing an already-flushed notification is ignored.
			d.mu.Lock()
			wasIdling := d.idling
			d.idling = false
			d.mu.Unlock()
			if wasIdling {
				d.write("OK\n")
			}
		case "password":
			if len(args) == 1 && args[0] == d.password {
				authed = true
				d.write("OK\n")
			} else {
				d.write("ACK [3@0] {password} incorrect password\n")
			}
		case "commands":
			if !authed {
				d.write("ACK [4@0] {commands} you don't have permission for \"commands\"\n")
				continue
			}
			var b strings.Builder
			for _, c := range d.commands {
				fmt.Fprintf(&b, "command: %s\n", c)
			}
			b.WriteString("OK\n")
			d.write(b.String())
		case "sticker":
			if len(args) >= 2 && args[0] == "get" && args[1] == "album" && len(args) == 4 && args[2] == "" {
				if d.albumProbeACK != "" {
					d.write(d.albumProbeACK + "\n")
				} else {
					d.write("ACK [50@0] {sticker} no such sticker\n")
				}
				continue
			}
			d.dispatch(cmd, args, line)
		default:
			d.dispatch(cmd, args, line)
		}
	}
}

func (d *fakeDaemon) dispatch(cmd string, args []string, line string) {
	if d.handle != nil {
		if resp := d.handle(cmd, args); resp != "" {
			d.write(resp)
			return
		}
	}
	d.t.Errorf("unexpected command %q", line)
	d.write("ACK [5@0] {} unknown command\n")
}

// parseRequestLine splits a request into keyword and unquoted arguments,
// mirroring the daemon's own tokenizer.
func parseRequestLine(line string) (string, []string) {
	var fields []string
	i := 0
	for i < len(line) {
		for i < len(line) && line[i] == ' ' {
			i++
		}
		if i >= len(line) {
			break
		}
		var b strings.Builder
		if line[i] == '"' {
			i++
			for i < len(line) && line[i] != '"' {
				if line[i] == '\\' && i+1 < len(line) {
					i++
				}
				b.WriteByte(line[i])
				i++
			}
			i++ // closing quote
		} else {
			for i < len(line) && line[i] != ' ' {
				b.WriteByte(line[i])
				i++
			}
		}
		fields = append(fields, b.String())
	}
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// newTestClient wires a client to the fake daemon over a pipe and
// connects it.
func newTestClient(t *testing.T, d *fakeDaemon) *Client {
	t.Helper()
	client := newTestClientNoConnect(t, d)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(client.Disconnect)
	return client
}

func newTestClientNoConnect(t *testing.T, d *fakeDaemon) *Client {
	t.Helper()
	server, clientSide := net.Pipe()
	d.t = t
	d.conn = server
	d.r = bufio.NewReader(server)
	d.gotIdle = make(chan struct{}, 1)
	if d.commands == nil {
		d.commands = defaultCommands()
	}
	go d.serve()
	t.Cleanup(func() { server.Close() })

	var password PasswordFunc
	if d.password != "" {
		pw := d.password
		password = func() (string, bool, error) { return pw, true, nil }
	}
	return NewClient(Config{
		Network:        "tcp",
		Address:        "fake:6600",
		Password:       password,
		CommandTimeout: 2 * time.Second,
		Dial: func(network, address string) (Conn, error) {
			return clientSide, nil
		},
	})
}

func waitIdle(t *testing.T, d *fakeDaemon) {
	t.Helper()
	select {
	case <-d.gotIdle:
	case <-time.After(2 * time.Second):
		t.Fatal("client never entered idle")
	}
}

func waitEvent(t *testing.T, c *Client, subsystem string) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Subsystem == subsystem {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", subsystem)
		}
	}
}

func TestConnectAndProbe(t *testing.T) {
	d := &fakeDaemon{}
	client := newTestClient(t, d)

	if client.State() != Connected {
		t.Errorf("state = %v, want connected", client.State())
	}
	if client.Version() != "0.23.5" {
		t.Errorf("version = %q", client.Version())
	}
	if client.StickerSupport() != StickersAll {
		t.Errorf("stickers = %v, want all", client.StickerSupport())
	}
	if !client.PlaylistsSupported() {
		t.Error("playlists should be supported")
	}
}

func TestConnectProbeSongsOnlyStickers(t *testing.T) {
	d := &fakeDaemon{albumProbeACK: "ACK [2@0] {sticker} unknown sticker domain"}
	client := newTestClient(t, d)

	if client.StickerSupport() != StickersSongsOnly {
		t.Errorf("stickers = %v, want songs-only", client.StickerSupport())
	}

	// Album sticker operations must be refused locally.
	err := client.StickerSet(context.Background(), StickerTypeAlbum, "albums/x/", "rating", "8")
	var capErr *CapabilityError
	if !errors.As(err, &capErr) {
		t.Errorf("err = %v, want *CapabilityError", err)
	}
}

func TestConnectNoStickerCommand(t *testing.T) {
	d := &fakeDaemon{commands: []string{"status", "play", "idle", "noidle"}}
	client := newTestClient(t, d)

	if client.StickerSupport() != StickersDisabled {
		t.Errorf("stickers = %v, want disabled", client.StickerSupport())
	}
	if client.PlaylistsSupported() {
		t.Error("playlists should be unsupported")
	}

	if _, err := client.Playlists(context.Background()); err == nil {
		t.Error("Playlists should fail without capability")
	}
}

func TestConnectWrongPassword(t *testing.T) {
	d := &fakeDaemon{password: "correct"}
	client := newTestClientNoConnect(t, d)
	client.cfg.Password = func() (string, bool, error) { return "wrong", true, nil }

	err := client.Connect(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.State != WrongPassword {
		t.Fatalf("err = %v, want AuthError{WrongPassword}", err)
	}
	if client.State() != WrongPassword {
		t.Errorf("state = %v", client.State())
	}
}

func TestConnectPasswordNotAvailable(t *testing.T) {
	d := &fakeDaemon{password: "required-but-not-configured"}
	client := newTestClientNoConnect(t, d)
	client.cfg.Password = nil

	err := client.Connect(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.State != PasswordNotAvailable {
		t.Fatalf("err = %v, want AuthError{PasswordNotAvailable}", err)
	}
	if client.State() != PasswordNotAvailable {
		t.Errorf("state = %v", client.State())
	}

	// No command may be issued past the refused probe.
	for _, line := range d.RawLines() {
		if line != "commands" {
			t.Errorf("unexpected command after auth refusal: %q", line)
		}
	}
}

func TestConnectCredentialStoreError(t *testing.T) {
	client := NewClient(Config{
		Network: "tcp",
		Address: "fake:6600",
		Password: func() (string, bool, error) {
			return "", false, errors.New("keyring locked")
		},
		Dial: func(network, address string) (Conn, error) {
			t.Error("dial must not happen when the secret store fails")
			return nil, errors.New("no")
		},
	})
	err := client.Connect(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.State != CredentialStoreError {
		t.Fatalf("err = %v, want AuthError{CredentialStoreError}", err)
	}
	if client.State() != CredentialStoreError {
		t.Errorf("state = %v", client.State())
	}
}

func TestStatusQuery(t *testing.T) {
	d := &fakeDaemon{handle: func(cmd string, args []string) string {
		if cmd == "status" {
			return "volume: 70\nstate: pause\nsong: 1\nelapsed: 10.000\nduration: 90.000\nOK\n"
		}
		return ""
	}}
	client := newTestClient(t, d)

	st, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StatePaused || st.Volume != 70 || st.Song != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestCurrentSongEmpty(t *testing.T) {
	d := &fakeDaemon{handle: func(cmd string, args []string) string {
		if cmd == "currentsong" {
			return "OK\n"
		}
		return ""
	}}
	client := newTestClient(t, d)

	song, err := client.CurrentSong(context.Background())
	if err != nil {
		t.Fatalf("CurrentSong: %v", err)
	}
	if song != nil {
		t.Errorf("song = %+v, want nil", song)
	}
}

// Commands submitted while connected must be answered in submission
// order, with idle notifications interleaved only between responses.
func TestCommandOrderingWithIdleInterleave(t *testing.T) {
	var served []string
	var mu sync.Mutex
	d := &fakeDaemon{handle: func(cmd string, args []string) string {
		mu.Lock()
		served = append(served, cmd)
		mu.Unlock()
		switch cmd {
		case "status":
			return "state: play\nOK\n"
		case "currentsong":
			return "file: a.mp3\nOK\n"
		case "play", "next":
			return "OK\n"
		}
		return ""
	}}
	client := newTestClient(t, d)
	ctx := context.Background()

	waitIdle(t, d)
	d.Notify("playlist")
	waitEvent(t, client, "playlist")

	if err := client.Play(ctx); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if _, err := client.Status(ctx); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if err := client.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := client.CurrentSong(ctx); err != nil {
		t.Fatalf("CurrentSong: %v", err)
	}

	mu.Lock()
	got := strings.Join(served, ",")
	mu.Unlock()
	if got != "play,status,next,currentsong" {
		t.Errorf("served order = %s", got)
	}

	// Another notification after the burst still arrives.
	waitIdle(t, d)
	d.Notify("player")
	waitEvent(t, client, "player")
}

func TestAlbumArtChunking(t *testing.T) {
	const total = 60000
	const chunkSize = 8192
	data := make([]byte, total)
	for i := range data {
		data[i] = byte(i % 251)
	}
	var requests int
	d := &fakeDaemon{handle: func(cmd string, args []string) string {
		switch cmd {
		case "readpicture":
			return "ACK [5@0] {} unknown command \"readpicture\"\n"
		case "albumart":
			requests++
			off, _ := strconv.Atoi(args[1])
			end := off + chunkSize
			if end > total {
				end = total
			}
			chunk := data[off:end]
			return fmt.Sprintf("size: %d\nbinary: %d\n%s\nOK\n", total, len(chunk), chunk)
		}
		return ""
	}}
	client := newTestClient(t, d)

	art, err := client.AlbumArt(context.Background(), "albums/x/01.flac")
	if err != nil {
		t.Fatalf("AlbumArt: %v", err)
	}
	if len(art.Data) != total {
		t.Fatalf("accumulated %d bytes, want %d", len(art.Data), total)
	}
	for i := range art.Data {
		if art.Data[i] != byte(i%251) {
			t.Fatalf("byte %d corrupted", i)
		}
	}
	if want := (total + chunkSize - 1) / chunkSize; requests != want {
		t.Errorf("requests = %d, want %d", requests, want)
	}
}

func TestAlbumArtPrefersReadpicture(t *testing.T) {
	d := &fakeDaemon{handle: func(cmd string, args []string) string {
		if cmd == "readpicture" {
			return "size: 4\ntype: image/png\nbinary: 4\nabcd\nOK\n"
		}
		return ""
	}}
	client := newTestClient(t, d)

	art, err := client.AlbumArt(context.Background(), "a.mp3")
	if err != nil {
		t.Fatalf("AlbumArt: %v", err)
	}
	if string(art.Data) != "abcd" || art.MIME != "image/png" {
		t.Errorf("art = %+v", art)
	}
}

func TestAlbumArtShrinkingTotal(t *testing.T) {
	calls := 0
	d := &fakeDaemon{handle: func(cmd string, args []string) string {
		switch cmd {
		case "readpicture":
			return "ACK [5@0] {} unknown command \"readpicture\"\n"
		case "albumart":
			calls++
			if calls == 1 {
				return fmt.Sprintf("size: 100\nbinary: 50\n%s\nOK\n", strings.Repeat("x", 50))
			}
			// Daemon now claims less than already delivered.
			return fmt.Sprintf("size: 40\nbinary: 40\n%s\nOK\n", strings.Repeat("x", 40))
		}
		return ""
	}}
	client := newTestClient(t, d)

	_, err := client.AlbumArt(context.Background(), "a.mp3")
	var proto *ProtocolError
	if !errors.As(err, &proto) {
		t.Fatalf("err = %v, want *ProtocolError", err)
	}
}

func TestRemoteErrorIsRecoverable(t *testing.T) {
	d := &fakeDaemon{handle: func(cmd string, args []string) string {
		switch cmd {
		case "lsinfo":
			return "ACK [50@0] {lsinfo} No such directory\n"
		case "status":
			return "state: stop\nOK\n"
		}
		return ""
	}}
	client := newTestClient(t, d)
	ctx := context.Background()

	_, err := client.ListInfo(ctx, "nope/")
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Code != AckNoExist {
		t.Fatalf("err = %v, want ACK 50", err)
	}

	// The connection survives the ACK.
	if client.State() != Connected {
		t.Fatalf("state = %v after ACK", client.State())
	}
	if _, err := client.Status(ctx); err != nil {
		t.Fatalf("Status after ACK: %v", err)
	}
}

func TestTransportErrorDisconnects(t *testing.T) {
	d := &fakeDaemon{}
	client := newTestClient(t, d)

	waitIdle(t, d)
	d.conn.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-client.Events():
			if ev.Subsystem == SubsystemConnection && ev.State == Disconnected {
				if _, err := client.Status(context.Background()); !errors.Is(err, ErrNotConnected) {
					t.Errorf("Status after disconnect = %v, want ErrNotConnected", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("no disconnect notification")
		}
	}
}

func TestStickerRoundTrip(t *testing.T) {
	stickers := map[string]string{}
	d := &fakeDaemon{handle: func(cmd string, args []string) string {
		if cmd != "sticker" {
			return ""
		}
		switch args[0] {
		case "set":
			stickers[args[3]] = args[4]
			return "OK\n"
		case "get":
			v, ok := stickers[args[3]]
			if !ok {
				return "ACK [50@0] {sticker} no such sticker\n"
			}
			return fmt.Sprintf("sticker: %s=%s\nOK\n", args[3], v)
		case "list":
			var b strings.Builder
			for k, v := range stickers {
				fmt.Fprintf(&b, "sticker: %s=%s\n", k, v)
			}
			b.WriteString("OK\n")
			return b.String()
		case "delete":
			delete(stickers, args[3])
			return "OK\n"
		}
		return ""
	}}
	client := newTestClient(t, d)
	ctx := context.Background()

	if err := client.Rate(ctx, "a.mp3", 8); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if err := client.SetLike(ctx, "a.mp3", LikeUp); err != nil {
		t.Fatalf("SetLike: %v", err)
	}
	if err := client.RecordPlayed(ctx, "a.mp3", time.Unix(1700000000, 0)); err != nil {
		t.Fatalf("RecordPlayed: %v", err)
	}

	st, err := client.StickerList(ctx, StickerTypeSong, "a.mp3")
	if err != nil {
		t.Fatalf("StickerList: %v", err)
	}
	if st.Rating != 8 || st.Like != LikeUp || st.PlayCount != 1 {
		t.Errorf("stickers = %+v", st)
	}
	if st.LastPlayed.Unix() != 1700000000 {
		t.Errorf("lastPlayed = %v", st.LastPlayed)
	}

	if err := client.Rate(ctx, "a.mp3", -1); err != nil {
		t.Fatalf("Rate clear: %v", err)
	}
	if _, ok := stickers["rating"]; ok {
		t.Error("rating sticker not deleted")
	}
}
