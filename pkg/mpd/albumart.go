package mpd

import (
	"context"
	"errors"
	"strconv"
)

// Art is a fetched picture with its optional content-type hint.
type Art struct {
	Data []byte
	MIME string
}

// AlbumArt fetches cover art for a URI.
//
// Two commands exist in the wild: readpicture returns embedded art with a
// MIME hint, albumart returns a cover file from the song's folder. The
// richer one is tried first; an unknown-command ACK falls back to the
// simpler one. Either way the fetch loops over sequential byte offsets
// until the advertised total has been accumulated.
func (c *Client) AlbumArt(ctx context.Context, uri string) (*Art, error) {
	art, err := c.fetchArt(ctx, "readpicture", uri)
	if err == nil && art != nil {
		return art, nil
	}
	var remote *RemoteError
	if err != nil && !(errors.As(err, &remote) && remote.UnknownCommand()) {
		return nil, err
	}
	// readpicture unknown, or known but the file has no embedded art.
	art, err = c.fetchArt(ctx, "albumart", uri)
	if err != nil {
		return nil, err
	}
	if art == nil {
		return nil, &RemoteError{Code: AckNoExist, Command: "albumart", Message: "no art available"}
	}
	return art, nil
}

// fetchArt runs the chunked fetch loop for one command variant. A nil
// Art with nil error means the daemon reported a zero-size attachment.
func (c *Client) fetchArt(ctx context.Context, command, uri string) (*Art, error) {
	var (
		buf  []byte
		mime string
		size int64 = -1
	)
	for {
		offset := int64(len(buf))
		chunk, err := c.artChunk(ctx, command, uri, offset)
		if err != nil {
			return nil, err
		}
		if size >= 0 && chunk.Size != size {
			return nil, protocolErrorf("%s total changed from %d to %d", command, size, chunk.Size)
		}
		size = chunk.Size
		if size < offset+int64(len(chunk.Data)) {
			return nil, protocolErrorf("%s advertised %d bytes but delivered %d", command, size, offset+int64(len(chunk.Data)))
		}
		if chunk.MIME != "" {
			mime = chunk.MIME
		}
		if size == 0 {
			return nil, nil
		}
		if len(chunk.Data) == 0 {
			return nil, protocolErrorf("%s returned empty chunk at offset %d of %d", command, offset, size)
		}
		buf = append(buf, chunk.Data...)
		if int64(len(buf)) >= size {
			return &Art{Data: buf, MIME: mime}, nil
		}
	}
}

// artChunk requests one chunk. Each chunk is its own serial command, so
// idle notifications may be delivered between chunks but never inside
// one.
func (c *Client) artChunk(ctx context.Context, command, uri string, offset int64) (*BinaryChunk, error) {
	v, err := c.do(ctx, command, func(codec *Codec) (interface{}, error) {
		if err := codec.Send(command, uri, strconv.FormatInt(offset, 10)); err != nil {
			return nil, err
		}
		return codec.ReadBinaryChunk()
	})
	if err != nil {
		return nil, err
	}
	return v.(*BinaryChunk), nil
}
