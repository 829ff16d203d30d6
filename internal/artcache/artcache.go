// Package artcache stores album art on disk keyed by the album's
// folder URI. Files are content-addressed by a 64-bit hash of the URI,
// so writes are idempotent and need no locking beyond the rename.
package artcache

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
)

const thumbSize = 128

// Cache manages the albumart directory under a cache root. The
// directory is created lazily on the first write.
type Cache struct {
	dir    string
	logger zerolog.Logger
}

func New(root string, logger zerolog.Logger) *Cache {
	return &Cache{
		dir:    filepath.Join(root, "albumart"),
		logger: logger.With().Str("component", "artcache").Logger(),
	}
}

// PathFor maps a folder URI to its full-resolution and thumbnail
// paths. It is deterministic and does not touch the filesystem.
func (c *Cache) PathFor(folderURI string) (full, thumb string) {
	hash := strconv.FormatUint(xxhash.Sum64String(folderURI), 10)
	full = filepath.Join(c.dir, hash+".png")
	thumb = filepath.Join(c.dir, hash+"_thumb.png")
	return full, thumb
}

// Probe reports whether both rendered files already exist.
func (c *Cache) Probe(folderURI string) (full, thumb string, ok bool) {
	full, thumb = c.PathFor(folderURI)
	if _, err := os.Stat(full); err != nil {
		return full, thumb, false
	}
	if _, err := os.Stat(thumb); err != nil {
		return full, thumb, false
	}
	return full, thumb, true
}

// Store decodes raw image bytes and writes the full-resolution copy
// plus a thumbnail. It returns the two paths on success.
func (c *Cache) Store(folderURI string, data []byte) (full, thumb string, err error) {
	img, kind, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("failed to decode artwork: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	full, thumb = c.PathFor(folderURI)
	if err := writePNG(full, img); err != nil {
		return "", "", err
	}
	if err := writePNG(thumb, thumbnail(img)); err != nil {
		return "", "", err
	}
	c.logger.Debug().Str("uri", folderURI).Str("format", kind).Msg("artwork cached")
	return full, thumb, nil
}

// thumbnail scales the longer edge down to thumbSize, preserving
// aspect ratio. Images already small enough are returned as is.
func thumbnail(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= thumbSize && h <= thumbSize {
		return img
	}
	if w >= h {
		h = h * thumbSize / w
		w = thumbSize
	} else {
		w = w * thumbSize / h
		h = thumbSize
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// writePNG writes atomically: temp file in the same directory, then
// rename into place.
func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".art-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode artwork: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write artwork: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to place artwork: %w", err)
	}
	return nil
}
