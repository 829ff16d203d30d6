package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Cache persists merged chain results in SQLite so repeat lookups skip
// the providers entirely. It is purely derivative: deleting the file
// only costs refetches.
type Cache struct {
	db *sql.DB
}

const (
	kindAlbum  = "album"
	kindArtist = "artist"
	kindLyrics = "lyrics"
)

// NewCache opens (and if needed creates) the cache database.
func NewCache(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS meta (
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			doc TEXT NOT NULL,
			fetched_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			PRIMARY KEY (kind, key)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Cache) get(ctx context.Context, kind, key string, target interface{}) bool {
	var doc string
	err := c.db.QueryRowContext(ctx,
		"SELECT doc FROM meta WHERE kind = ? AND key = ?", kind, key).Scan(&doc)
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(doc), target) == nil
}

func (c *Cache) put(ctx context.Context, kind, key string, doc interface{}) error {
	blob, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO meta (kind, key, doc, fetched_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT (kind, key) DO UPDATE SET doc = excluded.doc, fetched_at = excluded.fetched_at
	`, kind, key, string(blob))
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return nil
}

// GetAlbum returns a cached album document, or nil.
func (c *Cache) GetAlbum(ctx context.Context, key string) *AlbumMeta {
	var doc AlbumMeta
	if !c.get(ctx, kindAlbum, key, &doc) {
		return nil
	}
	return &doc
}

// PutAlbum stores an album document.
func (c *Cache) PutAlbum(ctx context.Context, key string, doc *AlbumMeta) error {
	return c.put(ctx, kindAlbum, key, doc)
}

// GetArtist returns a cached artist document, or nil.
func (c *Cache) GetArtist(ctx context.Context, key string) *ArtistMeta {
	var doc ArtistMeta
	if !c.get(ctx, kindArtist, key, &doc) {
		return nil
	}
	return &doc
}

// PutArtist stores an artist document.
func (c *Cache) PutArtist(ctx context.Context, key string, doc *ArtistMeta) error {
	return c.put(ctx, kindArtist, key, doc)
}

// GetLyrics returns cached lyrics, or nil.
func (c *Cache) GetLyrics(ctx context.Context, key string) *Lyrics {
	var doc Lyrics
	if !c.get(ctx, kindLyrics, key, &doc) {
		return nil
	}
	if doc.Text == "" {
		return nil
	}
	return &doc
}

// PutLyrics stores lyrics.
func (c *Cache) PutLyrics(ctx context.Context, key string, doc *Lyrics) error {
	return c.put(ctx, kindLyrics, key, doc)
}

// Cleanup removes entries older than the given age and returns how many
// were deleted.
func (c *Cache) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	result, err := c.db.ExecContext(ctx, "DELETE FROM meta WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean cache: %w", err)
	}
	return result.RowsAffected()
}

// Cache keys are provider-independent identities, case-folded.

func albumCacheKey(key *AlbumKey) string {
	return strings.ToLower(key.Artist) + "\x00" + strings.ToLower(key.Title)
}

func artistCacheKey(key *ArtistKey) string {
	return strings.ToLower(key.Name)
}

func songCacheKey(key *SongKey) string {
	secs := strconv.Itoa(int(key.Duration.Seconds()))
	return strings.ToLower(key.Artist) + "\x00" + strings.ToLower(key.Title) + "\x00" + secs
}
