package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"innoviahub/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const summaryCacheKey = "catalog:summary"

// Store is the storage surface the catalog reads from.
type Store interface {
	ListResources(ctx context.Context, date time.Time) ([]models.Resource, error)
	GetResource(ctx context.Context, id int64) (*models.Resource, error)
}

// Catalog is the read-only list of bookable resources. It is availability
// context for the assistant, never the source of truth for conflict
// checks: those go through the reservation store's atomic insert.
type Catalog struct {
	store  Store
	logger *zerolog.Logger

	redis    *redis.Client
	cacheTTL time.Duration
}

// New constructs a catalog over the store.
func New(store Store, logger *zerolog.Logger) *Catalog {
	return &Catalog{store: store, logger: logger}
}

// UseRedisCache enables caching of the oracle context summary.
func (c *Catalog) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// List returns the current resource snapshot with today's occupancy.
func (c *Catalog) List(ctx context.Context) ([]models.Resource, error) {
	return c.store.ListResources(ctx, time.Now())
}

// Get returns a single resource by ID.
func (c *Catalog) Get(ctx context.Context, id int64) (*models.Resource, error) {
	return c.store.GetResource(ctx, id)
}

// Summary renders the availability context fed to the oracle, one line
// per resource. Served from Redis when fresh; best-effort only.
func (c *Catalog) Summary(ctx context.Context) (string, error) {
	if summary, ok := c.readCache(ctx); ok {
		return summary, nil
	}

	resources, err := c.List(ctx)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(resources))
	for _, r := range resources {
		state := "Available"
		if r.IsBooked {
			state = "Booked"
		}
		lines = append(lines, fmt.Sprintf("%s (Type ID: %d) - %s", r.Name, r.ResourceTypeID, state))
	}
	summary := strings.Join(lines, "\n")

	c.writeCache(ctx, summary)
	return summary, nil
}

// Invalidate drops the cached summary. Called after every reservation
// commit so the assistant context catches up promptly.
func (c *Catalog) Invalidate(ctx context.Context) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, summaryCacheKey).Err(); err != nil {
		c.logger.Debug().Err(err).Msg("invalidate catalog summary cache")
	}
}

func (c *Catalog) readCache(ctx context.Context) (string, bool) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return "", false
	}
	val, err := c.redis.Get(ctx, summaryCacheKey).Result()
	if err != nil {
		return "", false
	}
	var summary string
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return "", false
	}
	return summary, true
}

func (c *Catalog) writeCache(ctx context.Context, summary string) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, summaryCacheKey, data, c.cacheTTL).Err()
}
