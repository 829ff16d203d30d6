package metadata

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Provider is one link of the metadata chain.
//
// Providers must contain their own failures: a provider that cannot
// reach its service or parse a response returns the existing document
// unchanged. Merging its findings into the existing document is the
// provider's responsibility, via MergeAlbum/MergeArtist.
type Provider interface {
	// Key is the stable short identifier the provider is registered and
	// ordered by.
	Key() string

	// Priority orders execution, ascending. SetPriority is called by the
	// chain when the configured order changes.
	Priority() int
	SetPriority(n int)

	// AlbumMeta enriches the existing album document for the given key.
	// A provider that learns the MBID writes it back into the key.
	AlbumMeta(ctx context.Context, key *AlbumKey, existing *AlbumMeta) *AlbumMeta

	// ArtistMeta enriches the existing artist document.
	ArtistMeta(ctx context.Context, key *ArtistKey, existing *ArtistMeta) *ArtistMeta

	// Lyrics resolves lyrics for a song, or nil.
	Lyrics(ctx context.Context, key *SongKey) *Lyrics
}

// Chain runs lookups across an ordered list of providers and memoises
// the merged results in an optional cache.
type Chain struct {
	logger zerolog.Logger

	mu        sync.RWMutex
	providers []Provider
	cache     *Cache
}

// NewChain builds a chain over the given providers, sorted by their
// current priorities.
func NewChain(logger zerolog.Logger, providers ...Provider) *Chain {
	c := &Chain{
		logger:    logger.With().Str("component", "metadata").Logger(),
		providers: append([]Provider(nil), providers...),
	}
	c.sortLocked()
	return c
}

// SetCache attaches a result cache consulted before the providers and
// written through after a chain traversal.
func (c *Chain) SetCache(cache *Cache) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = cache
}

func (c *Chain) sortLocked() {
	sort.SliceStable(c.providers, func(i, j int) bool {
		return c.providers[i].Priority() < c.providers[j].Priority()
	})
}

// SetOrder reassigns provider priorities from an ordered list of keys
// and rebuilds the chain. Keys not present are ignored; providers not
// named keep their relative order after the named ones.
func (c *Chain) SetOrder(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rank := make(map[string]int, len(keys))
	for i, k := range keys {
		rank[k] = i
	}
	for _, p := range c.providers {
		if n, ok := rank[p.Key()]; ok {
			p.SetPriority(n)
		} else {
			p.SetPriority(len(keys) + p.Priority())
		}
	}
	c.sortLocked()
}

// Providers returns the providers in execution order.
func (c *Chain) Providers() []Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Provider(nil), c.providers...)
}

// AlbumMeta runs the album lookup through the chain. The returned
// document is always a superset of what any single provider returned:
// fields are only ever added, never dropped.
func (c *Chain) AlbumMeta(ctx context.Context, key *AlbumKey) *AlbumMeta {
	// Copies, not the header: SetOrder permutes the backing array in
	// place, so a traversal must not share it.
	c.mu.RLock()
	providers := append([]Provider(nil), c.providers...)
	cache := c.cache
	c.mu.RUnlock()

	cacheKey := albumCacheKey(key)
	if cache != nil {
		if doc := cache.GetAlbum(ctx, cacheKey); doc != nil {
			return doc
		}
	}

	var existing *AlbumMeta
	for _, p := range providers {
		existing = p.AlbumMeta(ctx, key, existing)
		if existing != nil && existing.MBID != "" && key.MBID == "" {
			key.MBID = existing.MBID
		}
	}
	if cache != nil && existing != nil {
		if err := cache.PutAlbum(ctx, cacheKey, existing); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache album metadata")
		}
	}
	return existing
}

// ArtistMeta runs the artist lookup through the chain.
func (c *Chain) ArtistMeta(ctx context.Context, key *ArtistKey) *ArtistMeta {
	c.mu.RLock()
	providers := append([]Provider(nil), c.providers...)
	cache := c.cache
	c.mu.RUnlock()

	cacheKey := artistCacheKey(key)
	if cache != nil {
		if doc := cache.GetArtist(ctx, cacheKey); doc != nil {
			return doc
		}
	}

	var existing *ArtistMeta
	for _, p := range providers {
		existing = p.ArtistMeta(ctx, key, existing)
		if existing != nil && existing.MBID != "" && key.MBID == "" {
			key.MBID = existing.MBID
		}
	}
	if cache != nil && existing != nil {
		if err := cache.PutArtist(ctx, cacheKey, existing); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache artist metadata")
		}
	}
	return existing
}

// Lyrics asks each provider in turn and returns the first hit.
func (c *Chain) Lyrics(ctx context.Context, key *SongKey) *Lyrics {
	c.mu.RLock()
	providers := append([]Provider(nil), c.providers...)
	cache := c.cache
	c.mu.RUnlock()

	cacheKey := songCacheKey(key)
	if cache != nil {
		if ly := cache.GetLyrics(ctx, cacheKey); ly != nil {
			return ly
		}
	}

	for _, p := range providers {
		if ly := p.Lyrics(ctx, key); ly != nil {
			if cache != nil {
				if err := cache.PutLyrics(ctx, cacheKey, ly); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to cache lyrics")
				}
			}
			return ly
		}
	}
	return nil
}
