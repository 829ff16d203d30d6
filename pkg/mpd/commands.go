package mpd

import (
	"context"
	"strconv"
	"time"
)

// cmd issues a fire-and-forget command: one write, expects OK.
func (c *Client) cmd(ctx context.Context, command string, args ...string) error {
	_, err := c.do(ctx, command, func(codec *Codec) (interface{}, error) {
		if err := codec.Send(command, args...); err != nil {
			return nil, err
		}
		_, err := codec.ReadResponse()
		return nil, err
	})
	return err
}

// query issues a command and returns the raw response pairs.
func (c *Client) query(ctx context.Context, command string, args ...string) ([]Pair, error) {
	v, err := c.do(ctx, command, func(codec *Codec) (interface{}, error) {
		if err := codec.Send(command, args...); err != nil {
			return nil, err
		}
		return codec.ReadResponse()
	})
	if err != nil {
		return nil, err
	}
	return v.([]Pair), nil
}

// Play starts playback of the current queue position.
func (c *Client) Play(ctx context.Context) error {
	return c.cmd(ctx, "play")
}

// PlayPos starts playback at the given queue position.
func (c *Client) PlayPos(ctx context.Context, pos int) error {
	return c.cmd(ctx, "play", strconv.Itoa(pos))
}

// Pause sets the paused state.
func (c *Client) Pause(ctx context.Context, paused bool) error {
	if paused {
		return c.cmd(ctx, "pause", "1")
	}
	return c.cmd(ctx, "pause", "0")
}

// Stop stops playback.
func (c *Client) Stop(ctx context.Context) error {
	return c.cmd(ctx, "stop")
}

// Next skips to the next queue entry.
func (c *Client) Next(ctx context.Context) error {
	return c.cmd(ctx, "next")
}

// Previous goes back to the previous queue entry.
func (c *Client) Previous(ctx context.Context) error {
	return c.cmd(ctx, "previous")
}

// SeekCur seeks within the current song to an absolute position.
func (c *Client) SeekCur(ctx context.Context, pos time.Duration) error {
	return c.cmd(ctx, "seekcur", strconv.FormatFloat(pos.Seconds(), 'f', 3, 64))
}

// Status queries the daemon's transport snapshot.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	pairs, err := c.query(ctx, "status")
	if err != nil {
		return nil, err
	}
	return statusFromPairs(pairs)
}

// CurrentSong returns the song being played, or nil when stopped with an
// empty queue.
func (c *Client) CurrentSong(ctx context.Context) (*Song, error) {
	pairs, err := c.query(ctx, "currentsong")
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	return songFromPairs(pairs)
}

// Queue enumerates the play queue.
func (c *Client) Queue(ctx context.Context) ([]Song, error) {
	pairs, err := c.query(ctx, "playlistinfo")
	if err != nil {
		return nil, err
	}
	return splitSongs(pairs)
}

// QueueAdd appends a URI (song or folder) to the queue.
func (c *Client) QueueAdd(ctx context.Context, uri string) error {
	return c.cmd(ctx, "add", uri)
}

// QueueDelete removes the entry at the given position.
func (c *Client) QueueDelete(ctx context.Context, pos int) error {
	return c.cmd(ctx, "delete", strconv.Itoa(pos))
}

// QueueMove moves an entry between positions.
func (c *Client) QueueMove(ctx context.Context, from, to int) error {
	return c.cmd(ctx, "move", strconv.Itoa(from), strconv.Itoa(to))
}

// QueueClear empties the queue.
func (c *Client) QueueClear(ctx context.Context) error {
	return c.cmd(ctx, "clear")
}

// ListInfo enumerates the library tree below a URI. Pass "" for the
// database root.
func (c *Client) ListInfo(ctx context.Context, uri string) ([]INode, error) {
	pairs, err := c.query(ctx, "lsinfo", uri)
	if err != nil {
		return nil, err
	}
	return splitNodes(pairs)
}

// Search finds songs whose tag contains the given value,
// case-insensitively.
func (c *Client) Search(ctx context.Context, tag, value string) ([]Song, error) {
	pairs, err := c.query(ctx, "search", tag, value)
	if err != nil {
		return nil, err
	}
	return splitSongs(pairs)
}

// Playlists enumerates stored playlists.
func (c *Client) Playlists(ctx context.Context) ([]INode, error) {
	if !c.PlaylistsSupported() {
		return nil, &CapabilityError{Capability: "stored playlists"}
	}
	pairs, err := c.query(ctx, "listplaylists")
	if err != nil {
		return nil, err
	}
	return splitNodes(pairs)
}

// PlaylistLoad appends a stored playlist to the queue.
func (c *Client) PlaylistLoad(ctx context.Context, name string) error {
	if !c.PlaylistsSupported() {
		return &CapabilityError{Capability: "stored playlists"}
	}
	return c.cmd(ctx, "load", name)
}

// PlaylistSave stores the queue under the given name.
func (c *Client) PlaylistSave(ctx context.Context, name string) error {
	if !c.PlaylistsSupported() {
		return &CapabilityError{Capability: "stored playlists"}
	}
	return c.cmd(ctx, "save", name)
}
