package mpd

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Sticker types accepted by the daemon.
const (
	StickerTypeSong  = "song"
	StickerTypeAlbum = "album"
)

// Recognised sticker keys. Unknown keys are tolerated and ignored.
const (
	stickerRating      = "rating"
	stickerLike        = "like"
	stickerElapsed     = "elapsed"
	stickerLastPlayed  = "lastPlayed"
	stickerLastSkipped = "lastSkipped"
	stickerPlayCount   = "playCount"
	stickerSkipCount   = "skipCount"
)

// Like is a coarse per-song verdict, encoded 0/1/2 on the wire.
type Like int

const (
	LikeUp       Like = 0
	LikeSideways Like = 1
	LikeDown     Like = 2
)

// String returns a human-readable representation of the Like value.
func (l Like) String() string {
	switch l {
	case LikeUp:
		return "up"
	case LikeDown:
		return "down"
	default:
		return "sideways"
	}
}

// Stickers is the typed view of a song's or album's sticker records.
type Stickers struct {
	Rating      int  // -1 when unset
	Like        Like // defaults to LikeSideways
	Elapsed     int64
	LastPlayed  time.Time // zero when unset
	LastSkipped time.Time
	PlayCount   int64
	SkipCount   int64
}

func stickersFromPairs(pairs []Pair) *Stickers {
	st := &Stickers{Rating: -1, Like: LikeSideways}
	for _, p := range pairs {
		if p.Key != "sticker" {
			continue
		}
		name, value, ok := strings.Cut(p.Value, "=")
		if !ok {
			continue
		}
		switch name {
		case stickerRating:
			if n, err := strconv.Atoi(value); err == nil {
				st.Rating = n
			}
		case stickerLike:
			if n, err := strconv.Atoi(value); err == nil && n >= 0 && n <= 2 {
				st.Like = Like(n)
			}
		case stickerElapsed:
			st.Elapsed, _ = strconv.ParseInt(value, 10, 64)
		case stickerLastPlayed:
			if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
				st.LastPlayed = time.Unix(ts, 0)
			}
		case stickerLastSkipped:
			if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
				st.LastSkipped = time.Unix(ts, 0)
			}
		case stickerPlayCount:
			st.PlayCount, _ = strconv.ParseInt(value, 10, 64)
		case stickerSkipCount:
			st.SkipCount, _ = strconv.ParseInt(value, 10, 64)
		}
	}
	return st
}

func (c *Client) checkStickerType(typ string) error {
	switch c.StickerSupport() {
	case StickersDisabled:
		return &CapabilityError{Capability: "stickers"}
	case StickersSongsOnly:
		if typ != StickerTypeSong {
			return &CapabilityError{Capability: "album stickers"}
		}
	}
	return nil
}

// StickerGet fetches one sticker value. A missing sticker is reported as
// ok=false with a nil error.
func (c *Client) StickerGet(ctx context.Context, typ, uri, name string) (string, bool, error) {
	if err := c.checkStickerType(typ); err != nil {
		return "", false, err
	}
	pairs, err := c.query(ctx, "sticker", "get", typ, uri, name)
	if err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) && remote.Code == AckNoExist {
			return "", false, nil
		}
		return "", false, err
	}
	for _, p := range pairs {
		if p.Key == "sticker" {
			if _, value, ok := strings.Cut(p.Value, "="); ok {
				return value, true, nil
			}
		}
	}
	return "", false, protocolErrorf("sticker get response without sticker key")
}

// StickerSet writes one sticker value.
func (c *Client) StickerSet(ctx context.Context, typ, uri, name, value string) error {
	if err := c.checkStickerType(typ); err != nil {
		return err
	}
	return c.cmd(ctx, "sticker", "set", typ, uri, name, value)
}

// StickerDelete removes one sticker.
func (c *Client) StickerDelete(ctx context.Context, typ, uri, name string) error {
	if err := c.checkStickerType(typ); err != nil {
		return err
	}
	return c.cmd(ctx, "sticker", "delete", typ, uri, name)
}

// StickerList fetches all stickers of an entity as a typed record.
func (c *Client) StickerList(ctx context.Context, typ, uri string) (*Stickers, error) {
	if err := c.checkStickerType(typ); err != nil {
		return nil, err
	}
	pairs, err := c.query(ctx, "sticker", "list", typ, uri)
	if err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) && remote.Code == AckNoExist {
			return &Stickers{Rating: -1, Like: LikeSideways}, nil
		}
		return nil, err
	}
	return stickersFromPairs(pairs), nil
}

// Rate stores a song rating; a negative rating clears it.
func (c *Client) Rate(ctx context.Context, uri string, rating int) error {
	if rating < 0 {
		return c.StickerDelete(ctx, StickerTypeSong, uri, stickerRating)
	}
	return c.StickerSet(ctx, StickerTypeSong, uri, stickerRating, strconv.Itoa(rating))
}

// SetLike stores the like verdict for a song.
func (c *Client) SetLike(ctx context.Context, uri string, like Like) error {
	return c.StickerSet(ctx, StickerTypeSong, uri, stickerLike, strconv.Itoa(int(like)))
}

// RecordPlayed bumps the play count and stamps lastPlayed.
func (c *Client) RecordPlayed(ctx context.Context, uri string, at time.Time) error {
	return c.bumpCounter(ctx, uri, stickerPlayCount, stickerLastPlayed, at)
}

// RecordSkipped bumps the skip count and stamps lastSkipped.
func (c *Client) RecordSkipped(ctx context.Context, uri string, at time.Time) error {
	return c.bumpCounter(ctx, uri, stickerSkipCount, stickerLastSkipped, at)
}

func (c *Client) bumpCounter(ctx context.Context, uri, counter, stamp string, at time.Time) error {
	value, ok, err := c.StickerGet(ctx, StickerTypeSong, uri, counter)
	if err != nil {
		return err
	}
	var n int64
	if ok {
		n, _ = strconv.ParseInt(value, 10, 64)
	}
	if err := c.StickerSet(ctx, StickerTypeSong, uri, counter, strconv.FormatInt(n+1, 10)); err != nil {
		return err
	}
	return c.StickerSet(ctx, StickerTypeSong, uri, stamp, strconv.FormatInt(at.Unix(), 10))
}
