package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"zpl-editor/internal/textutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const schema = `CREATE TABLE IF NOT EXISTS rendered_labels (
	hash       TEXT PRIMARY KEY,
	params     TEXT NOT NULL,
	image      BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RenderCache provides in-memory + optional PostgreSQL-backed caching for rendered labels.
type RenderCache struct {
	pool   *pgxpool.Pool
	mu     sync.RWMutex
	memory map[string][]byte // hash → png
}

// NewRenderCache creates a cache. A nil pool keeps it memory-only.
func NewRenderCache(pool *pgxpool.Pool) *RenderCache {
	return &RenderCache{
		pool:   pool,
		memory: make(map[string][]byte),
	}
}

// Key hashes the render parameters together with the label text.
func Key(params, zpl string) string {
	return textutil.Hash(params + "\x00" + zpl)
}

// EnsureSchema creates the cache table.
func (c *RenderCache) EnsureSchema(ctx context.Context) error {
	if c.pool == nil {
		return nil
	}
	if _, err := c.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure cache schema: %w", err)
	}
	return nil
}

// Get retrieves a cached image.
func (c *RenderCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	if v, ok := c.memory[key]; ok {
		c.mu.RUnlock()
		return v, true
	}
	c.mu.RUnlock()

	if c.pool == nil {
		return nil, false
	}

	var img []byte
	err := c.pool.QueryRow(ctx, `SELECT image FROM rendered_labels WHERE hash = $1`, key).Scan(&img)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Warn().Err(err).Msg("Cache lookup failed")
		}
		return nil, false
	}

	c.mu.Lock()
	c.memory[key] = img
	c.mu.Unlock()

	return img, true
}

// Set stores an image in memory and, when configured, in PostgreSQL.
func (c *RenderCache) Set(ctx context.Context, key, params string, img []byte) error {
	c.mu.Lock()
	c.memory[key] = img
	c.mu.Unlock()

	if c.pool == nil {
		return nil
	}

	_, err := c.pool.Exec(ctx,
		`INSERT INTO rendered_labels (hash, params, image) VALUES ($1, $2, $3)
		 ON CONFLICT (hash) DO UPDATE SET image = EXCLUDED.image`,
		key, params, img)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Preload loads all cached images for params into memory.
func (c *RenderCache) Preload(ctx context.Context, params string) error {
	if c.pool == nil {
		return nil
	}

	rows, err := c.pool.Query(ctx, `SELECT hash, image FROM rendered_labels WHERE params = $1`, params)
	if err != nil {
		return fmt.Errorf("preload cache: %w", err)
	}
	defer rows.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for rows.Next() {
		var hash string
		var img []byte
		if err := rows.Scan(&hash, &img); err != nil {
			return fmt.Errorf("scan cached label: %w", err)
		}
		c.memory[hash] = img
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("preload cache: %w", err)
	}

	log.Info().Int("count", count).Msg("Preloaded render cache")
	return nil
}

// Len reports the number of images held in memory.
func (c *RenderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memory)
}

// Renderer produces a label image.
type Renderer interface {
	Render(ctx context.Context, zpl string) ([]byte, error)
}

// CachingRenderer serves repeated renders from a RenderCache.
type CachingRenderer struct {
	next   Renderer
	cache  *RenderCache
	params string
}

// Wrap returns a Renderer that consults cache before calling next. params
// identifies the rendering parameters of next.
func Wrap(next Renderer, cache *RenderCache, params string) *CachingRenderer {
	return &CachingRenderer{next: next, cache: cache, params: params}
}

// Render implements Renderer.
func (r *CachingRenderer) Render(ctx context.Context, zpl string) ([]byte, error) {
	key := Key(r.params, zpl)
	if img, ok := r.cache.Get(ctx, key); ok {
		log.Debug().Str("hash", textutil.Truncate(key, 12)).Msg("Render cache hit")
		return img, nil
	}

	img, err := r.next.Render(ctx, zpl)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, r.params, img); err != nil {
		log.Warn().Err(err).Msg("Failed to cache render")
	}
	return img, nil
}
