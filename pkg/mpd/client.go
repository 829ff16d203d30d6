package mpd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the client's connection state.
type State int

const (
	Disconnected          State = iota // Initial state, and after any fatal I/O error
	Connecting                         // Transport being opened, handshake in progress
	Unauthenticated                    // Banner received, configured password not yet sent
	PasswordNotAvailable               // Daemon requires a password and none is configured
	WrongPassword                      // Daemon rejected the configured password
	ConnectionRefused                  // TCP transport error during Connecting
	SocketNotFound                     // Local socket path missing during Connecting
	CredentialStoreError               // The external secret store failed
	Connected                          // Ready: authenticated and capability probe complete
)

// String returns a human-readable representation of the State.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Unauthenticated:
		return "unauthenticated"
	case PasswordNotAvailable:
		return "password not available"
	case WrongPassword:
		return "wrong password"
	case ConnectionRefused:
		return "connection refused"
	case SocketNotFound:
		return "socket not found"
	case CredentialStoreError:
		return "credential store error"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// StickerLevel is the probed level of sticker support.
type StickerLevel int

const (
	StickersDisabled  StickerLevel = iota // No sticker command accepted
	StickersSongsOnly                     // Sticker operations accepted for songs only
	StickersAll                           // Also accepted for albums
)

// String returns a human-readable representation of the StickerLevel.
func (l StickerLevel) String() string {
	switch l {
	case StickersSongsOnly:
		return "songs-only"
	case StickersAll:
		return "all"
	default:
		return "disabled"
	}
}

// AuthError is a failed connect attempt: the daemon requires credentials
// the client could not supply, rejected them, or the secret store failed.
type AuthError struct {
	State State // PasswordNotAvailable, WrongPassword, or CredentialStoreError
	Err   error
}

// Error returns the error message.
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mpd: auth failed (%s): %v", e.State, e.Err)
	}
	return fmt.Sprintf("mpd: auth failed (%s)", e.State)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error { return e.Err }

// Event is a tagged change notification published by the client.
//
// Subsystem events carry the daemon's changed subsystem name (player,
// mixer, playlist, database, sticker, ...). Connection-state transitions
// are published with Subsystem "connection" and the new State.
type Event struct {
	Subsystem string
	State     State
}

// SubsystemConnection tags connection-state events.
const SubsystemConnection = "connection"

// DialFunc opens the transport. Overridable for tests.
type DialFunc func(network, address string) (Conn, error)

// PasswordFunc fetches the configured password from the secret store.
// The bool reports whether a password is configured at all.
type PasswordFunc func() (string, bool, error)

// Config holds client configuration.
type Config struct {
	Network string // "tcp" or "unix"
	Address string // host:port, or socket path for unix

	// Password is consulted during Connect. Nil means no password is
	// configured. A PasswordFunc error surfaces as CredentialStoreError.
	Password PasswordFunc

	// CommandTimeout bounds every blocking read of a command response.
	// Zero means the 5 second default. The idle channel never times out.
	CommandTimeout time.Duration

	// Dial is overridable for tests; defaults to net.DialTimeout.
	Dial DialFunc

	Logger zerolog.Logger
}

// DefaultCommandTimeout bounds command response reads unless configured.
const DefaultCommandTimeout = 5 * time.Second

const dialTimeout = 5 * time.Second

type response struct {
	value interface{}
	err   error
}

type request struct {
	name string
	exec func(*Codec) (interface{}, error)
	resp chan response
}

// Client is a stateful facade over the Codec: a connection state machine
// with authentication, capability probing, typed commands, and an idle
// notification channel.
//
// All commands are executed by a single I/O worker that owns the byte
// stream; the worker sits in the daemon's idle mode whenever no command
// is outstanding and interrupts it with noidle when one is submitted.
type Client struct {
	cfg     Config
	timeout time.Duration
	logger  zerolog.Logger

	mu        sync.Mutex
	state     State
	version   string
	stickers  StickerLevel
	playlists bool
	codec     *Codec
	idling    bool
	closeOnce *sync.Once
	reqCh     chan *request
	done      chan struct{}

	events chan Event
}

// NewClient creates a client. No I/O happens until Connect.
func NewClient(cfg Config) *Client {
	timeout := cfg.CommandTimeout
	if timeout == 0 {
		timeout = DefaultCommandTimeout
	}
	if cfg.Dial == nil {
		cfg.Dial = func(network, address string) (Conn, error) {
			conn, err := net.DialTimeout(network, address, dialTimeout)
			if err != nil {
				return nil, err
			}
			return conn.(Conn), nil
		}
	}
	return &Client{
		cfg:     cfg,
		timeout: timeout,
		logger:  cfg.Logger.With().Str("component", "mpd").Logger(),
		state:   Disconnected,
		events:  make(chan Event, 64),
	}
}

// Events returns the notification channel. Subsystem changes and
// connection-state transitions are interleaved here; an event referring
// to a command's subsystem is only ever delivered between two command
// responses, never inside one.
func (c *Client) Events() <-chan Event {
	return c.events
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Version returns the protocol version string from the daemon's banner.
func (c *Client) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// StickerSupport returns the probed sticker capability level.
func (c *Client) StickerSupport() StickerLevel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stickers
}

// PlaylistsSupported reports whether stored playlists are available.
func (c *Client) PlaylistsSupported() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playlists
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.publish(Event{Subsystem: SubsystemConnection, State: s})
}

// publish forwards an event without ever blocking the I/O worker. A full
// channel drops the oldest event first.
func (c *Client) publish(ev Event) {
	for {
		select {
		case c.events <- ev:
			return
		default:
		}
		select {
		case old := <-c.events:
			c.logger.Warn().Str("subsystem", old.Subsystem).Msg("Event queue full, dropping oldest")
		default:
		}
	}
}

// Connect opens the transport, reads the banner, authenticates if a
// password is configured, probes capabilities, and starts the I/O
// worker. The client does not reconnect on its own: after a fatal error
// the caller decides whether to call Connect again.
func (c *Client) Connect(ctx context.Context) error {
	if c.State() != Disconnected && c.State() != Connecting {
		if c.State() == Connected {
			return errors.New("mpd: already connected")
		}
	}
	c.setState(Connecting)

	password, havePassword, err := c.fetchPassword()
	if err != nil {
		c.setState(CredentialStoreError)
		return &AuthError{State: CredentialStoreError, Err: err}
	}

	conn, err := c.cfg.Dial(c.cfg.Network, c.cfg.Address)
	if err != nil {
		if c.cfg.Network == "unix" && isNotFound(err) {
			c.setState(SocketNotFound)
		} else {
			c.setState(ConnectionRefused)
		}
		return fmt.Errorf("mpd: dial %s %s: %w", c.cfg.Network, c.cfg.Address, err)
	}

	codec := NewCodec(conn)
	codec.SetTimeout(c.timeout)

	version, err := readBanner(codec)
	if err != nil {
		codec.Close()
		c.setState(Disconnected)
		return err
	}

	if havePassword {
		c.setState(Unauthenticated)
		if err := authenticate(codec, password); err != nil {
			codec.Close()
			var remote *RemoteError
			if errors.As(err, &remote) && remote.Code == AckPassword {
				c.setState(WrongPassword)
				return &AuthError{State: WrongPassword, Err: err}
			}
			c.setState(Disconnected)
			return err
		}
	}

	stickers, playlists, err := c.probe(codec)
	if err != nil {
		codec.Close()
		var remote *RemoteError
		if errors.As(err, &remote) && remote.Code == AckPermission {
			// No further command is issued once the daemon demands a
			// password we do not have.
			c.setState(PasswordNotAvailable)
			return &AuthError{State: PasswordNotAvailable, Err: err}
		}
		c.setState(Disconnected)
		return err
	}

	c.mu.Lock()
	c.codec = codec
	c.version = version
	c.stickers = stickers
	c.playlists = playlists
	c.idling = false
	c.reqCh = make(chan *request, 1)
	c.done = make(chan struct{})
	c.closeOnce = &sync.Once{}
	done := c.done
	c.mu.Unlock()

	c.setState(Connected)
	c.logger.Info().
		Str("version", version).
		Str("stickers", stickers.String()).
		Bool("playlists", playlists).
		Msg("Connected")

	go c.run(codec, done)
	return nil
}

func (c *Client) fetchPassword() (string, bool, error) {
	if c.cfg.Password == nil {
		return "", false, nil
	}
	return c.cfg.Password()
}

func isNotFound(err error) bool {
	if os.IsNotExist(err) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return os.IsNotExist(opErr.Err)
	}
	return false
}

// readBanner consumes the greeting line: OK MPD <version>.
func readBanner(codec *Codec) (string, error) {
	line, err := codec.ReadLine()
	if err != nil {
		return "", err
	}
	version, ok := strings.CutPrefix(line, "OK MPD ")
	if !ok {
		return "", protocolErrorf("unexpected banner %q", line)
	}
	return version, nil
}

func authenticate(codec *Codec, password string) error {
	if err := codec.Send("password", password); err != nil {
		return err
	}
	_, err := codec.ReadResponse()
	return err
}

// probe lists the accepted command groups and derives sticker and
// playlist support. A RemoteError on the sticker level trial demotes
// stickers rather than the connection: the client stays usable with a
// limited capability set.
func (c *Client) probe(codec *Codec) (StickerLevel, bool, error) {
	if err := codec.Send("commands"); err != nil {
		return StickersDisabled, false, err
	}
	pairs, err := codec.ReadResponse()
	if err != nil {
		return StickersDisabled, false, err
	}
	available := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		if p.Key == "command" {
			available[p.Value] = true
		}
	}

	playlists := available["listplaylists"]
	if !available["sticker"] {
		return StickersDisabled, playlists, nil
	}

	// Distinguish songs-only from full support with an album-type trial.
	// A daemon without album stickers rejects the type as a bad argument;
	// one with them answers "no such sticker" for the empty key.
	level := StickersAll
	if err := codec.Send("sticker", "get", "album", "", ""); err != nil {
		return StickersDisabled, playlists, err
	}
	if _, err := codec.ReadResponse(); err != nil {
		var remote *RemoteError
		if !errors.As(err, &remote) {
			return StickersDisabled, playlists, err
		}
		if remote.Code == AckArg {
			level = StickersSongsOnly
		}
	}
	return level, playlists, nil
}

// Disconnect closes the connection and stops the worker. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	codec := c.codec
	once := c.closeOnce
	done := c.done
	c.codec = nil
	c.mu.Unlock()

	if once != nil {
		once.Do(func() { close(done) })
	}
	if codec != nil {
		codec.Close()
	}
	c.setState(Disconnected)
}

// fatal handles a transport error: one state transition, one closed
// stream, no silent reconnect.
func (c *Client) fatal(err error) {
	c.logger.Error().Err(err).Msg("Connection lost")
	c.Disconnect()
}

func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	var remote *RemoteError
	var proto *ProtocolError
	if errors.As(err, &remote) || errors.As(err, &proto) {
		return false
	}
	return true
}

// do submits a command to the I/O worker and waits for its response.
// Commands submitted here execute strictly in submission order.
//
// The request is enqueued first and the idle wait interrupted after,
// under the same mutex the worker takes before entering idle: either the
// worker sees the queued request before idling, or this submitter sees
// idling set and sends noidle. No wakeup can be lost.
func (c *Client) do(ctx context.Context, name string, exec func(*Codec) (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	if c.state != Connected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	reqCh, done := c.reqCh, c.done
	c.mu.Unlock()

	req := &request{name: name, exec: exec, resp: make(chan response, 1)}
	select {
	case reqCh <- req:
	case <-done:
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	if c.idling && c.codec != nil {
		// idling is cleared here so a second submitter does not send a
		// stray noidle once the daemon has already been interrupted.
		c.idling = false
		if err := c.codec.Send("noidle"); err != nil {
			c.mu.Unlock()
			c.fatal(err)
			return nil, err
		}
	}
	c.mu.Unlock()

	select {
	case resp := <-req.resp:
		return resp.value, resp.err
	case <-done:
		// Prefer the response when teardown raced ahead of delivery.
		select {
		case resp := <-req.resp:
			return resp.value, resp.err
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		// The command cannot be cancelled once written; the response is
		// simply ignored.
		return nil, ctx.Err()
	}
}

// run is the I/O worker. It alternates between executing submitted
// commands and sitting in the daemon's idle mode; change notifications
// are therefore only ever read between commands.
func (c *Client) run(codec *Codec, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		// Take a pending command or commit to idling, atomically with
		// respect to submitters (see do).
		c.mu.Lock()
		var pending *request
		select {
		case pending = <-c.reqCh:
		default:
			if err := codec.Send("idle"); err != nil {
				c.mu.Unlock()
				c.fatal(err)
				return
			}
			c.idling = true
		}
		c.mu.Unlock()

		if pending != nil {
			if !c.execute(codec, pending) {
				return
			}
			continue
		}

		codec.SetTimeout(0)
		pairs, err := codec.ReadResponse()
		codec.SetTimeout(c.timeout)

		c.mu.Lock()
		c.idling = false
		c.mu.Unlock()

		if err != nil {
			if isTransportError(err) {
				select {
				case <-done:
				default:
					c.fatal(err)
				}
				return
			}
			c.logger.Warn().Err(err).Msg("Idle response error")
			continue
		}
		for _, p := range pairs {
			if p.Key == "changed" {
				c.publish(Event{Subsystem: p.Value})
			}
		}
	}
}

// execute runs one command on the wire. Remote and protocol errors are
// returned to the submitter; transport errors tear the connection down.
// Returns false when the worker must exit.
func (c *Client) execute(codec *Codec, req *request) bool {
	value, err := req.exec(codec)
	if err != nil && isTransportError(err) {
		req.resp <- response{err: err}
		c.fatal(err)
		return false
	}
	if err != nil {
		c.logger.Debug().Err(err).Str("command", req.name).Msg("Command failed")
	}
	req.resp <- response{value: value, err: err}
	return true
}
