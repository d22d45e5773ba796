// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Kind selects which document of a route is cached.
type Kind string

const (
	// KindLive is the published document served on the public site.
	KindLive Kind = "live"
	// KindPreview is the newest unpublished document served by /preview.
	KindPreview Kind = "preview"

	// DefaultPageTTL is how long a document stays cached.
	DefaultPageTTL = 5 * time.Minute
)

// PageCache stores route documents in Valkey under "<kind>:<route>".
// Errors are logged and treated as misses; the database stays the source
// of truth.
type PageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPageCache creates a page cache backed by the given Valkey client.
func NewPageCache(client *redis.Client, ttl time.Duration) *PageCache {
	if ttl == 0 {
		ttl = DefaultPageTTL
	}
	return &PageCache{client: client, ttl: ttl}
}

// Key returns the Valkey key for a route document.
func Key(kind Kind, pageRoute string) string {
	return string(kind) + ":" + pageRoute
}

// Get retrieves a cached document. ok is false on a miss or an error.
func (pc *PageCache) Get(ctx context.Context, kind Kind, pageRoute string) (html []byte, ok bool) {
	key := Key(kind, pageRoute)
	val, err := pc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("page cache get error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("page cache hit", "key", key)
	return val, true
}

// Set stores a document with the configured TTL.
func (pc *PageCache) Set(ctx context.Context, kind Kind, pageRoute string, html []byte) {
	key := Key(kind, pageRoute)
	if err := pc.client.Set(ctx, key, html, pc.ttl).Err(); err != nil {
		slog.Warn("page cache set error", "key", key, "error", err)
	}
}

// InvalidatePreview drops the cached preview of a route.
func (pc *PageCache) InvalidatePreview(ctx context.Context, pageRoute string) {
	pc.del(ctx, Key(KindPreview, pageRoute))
}

// InvalidateRoute drops both cached documents of a route.
func (pc *PageCache) InvalidateRoute(ctx context.Context, pageRoute string) {
	pc.del(ctx, Key(KindLive, pageRoute), Key(KindPreview, pageRoute))
}

func (pc *PageCache) del(ctx context.Context, keys ...string) {
	if err := pc.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("page cache invalidate error", "keys", keys, "error", err)
		return
	}
	slog.Debug("page cache invalidated", "keys", keys)
}

// InvalidateAll removes every cached document by scanning both prefixes.
// Used at startup, since the version table may have changed while the
// process was down.
func (pc *PageCache) InvalidateAll(ctx context.Context) {
	var deleted int
	for _, kind := range []Kind{KindLive, KindPreview} {
		var cursor uint64
		for {
			keys, next, err := pc.client.Scan(ctx, cursor, string(kind)+":*", 100).Result()
			if err != nil {
				slog.Warn("page cache scan error", "error", err)
				return
			}
			if len(keys) > 0 {
				if err := pc.client.Del(ctx, keys...).Err(); err != nil {
					slog.Warn("page cache bulk delete error", "error", err)
				}
				deleted += len(keys)
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	if deleted > 0 {
		slog.Info("page cache cleared", "deleted", deleted)
	}
}
