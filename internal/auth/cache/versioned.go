package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

// DefaultTTL applies when neither the cache nor the caller sets one.
const DefaultTTL = 14 * 24 * time.Hour

// Versioned caches DTOs of one type under "<Type>:<version>:<id>". Bumping
// the version makes every older entry unaddressable.
type Versioned[T any] struct {
	backend  Backend
	typeName string
	version  int
	ttl      time.Duration
	idOf     func(*T) string
}

type Option func(*options)

type options struct {
	ttl time.Duration
}

// WithDefaultTTL overrides DefaultTTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// NewVersioned builds a cache for T. idOf extracts the id a value is stored under.
func NewVersioned[T any](b Backend, typeName string, version int, idOf func(*T) string, opts ...Option) *Versioned[T] {
	o := options{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	return &Versioned[T]{
		backend:  b,
		typeName: typeName,
		version:  version,
		ttl:      o.ttl,
		idOf:     idOf,
	}
}

// Key returns the backend key for id.
func (c *Versioned[T]) Key(id string) string {
	return fmt.Sprintf("%s:%d:%s", c.typeName, c.version, id)
}

// Get returns the value stored for id. An alias is followed exactly once.
// ErrMiss covers absent entries, alias chains and unreadable payloads.
func (c *Versioned[T]) Get(ctx context.Context, id string) (*T, error) {
	key := c.Key(id)
	raw, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	e, ok := c.decode(ctx, key, raw)
	if !ok {
		return nil, ErrMiss
	}

	if e.Kind == kindAlias {
		key = e.Target
		if raw, err = c.backend.Get(ctx, key); err != nil {
			return nil, err
		}
		if e, ok = c.decode(ctx, key, raw); !ok || e.Kind != kindDirect {
			return nil, ErrMiss
		}
	}
	return c.value(ctx, key, e)
}

// GetMany returns one slot per id in order, nil where the cache has nothing
// usable. Callers re-source only the nil slots.
func (c *Versioned[T]) GetMany(ctx context.Context, ids []string) ([]*T, error) {
	out := make([]*T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.Key(id)
	}
	raws, err := c.backend.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}

	var (
		aliasSlots []int
		aliasKeys  []string
	)
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		e, ok := c.decode(ctx, keys[i], raw)
		if !ok {
			continue
		}
		if e.Kind == kindAlias {
			aliasSlots = append(aliasSlots, i)
			aliasKeys = append(aliasKeys, e.Target)
			continue
		}
		if v, err := c.value(ctx, keys[i], e); err == nil {
			out[i] = v
		}
	}

	if len(aliasKeys) == 0 {
		return out, nil
	}
	targets, err := c.backend.MGet(ctx, aliasKeys...)
	if err != nil {
		return nil, err
	}
	for j, raw := range targets {
		if raw == nil {
			continue
		}
		e, ok := c.decode(ctx, aliasKeys[j], raw)
		if !ok || e.Kind != kindDirect {
			continue
		}
		if v, err := c.value(ctx, aliasKeys[j], e); err == nil {
			out[aliasSlots[j]] = v
		}
	}
	return out, nil
}

// Set stores v under its id with the default TTL.
func (c *Versioned[T]) Set(ctx context.Context, v *T) error {
	return c.SetWithTTL(ctx, v, 0)
}

// SetWithTTL stores v with ttl, or the default TTL when ttl is not positive.
func (c *Versioned[T]) SetWithTTL(ctx context.Context, v *T, ttl time.Duration) error {
	if v == nil {
		return fmt.Errorf("cache: nil %s", c.typeName)
	}
	raw, err := encodeDirect(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", c.typeName, err)
	}
	return c.backend.Set(ctx, c.Key(c.idOf(v)), raw, c.ttlOr(ttl))
}

// SetAlias makes alias resolve to the entry stored for id.
func (c *Versioned[T]) SetAlias(ctx context.Context, alias, id string, ttl time.Duration) error {
	raw, err := encodeAlias(c.Key(id))
	if err != nil {
		return fmt.Errorf("cache: encode alias: %w", err)
	}
	return c.backend.Set(ctx, c.Key(alias), raw, c.ttlOr(ttl))
}

// Delete removes the entries for ids. Aliases pointing at them simply miss.
func (c *Versioned[T]) Delete(ctx context.Context, ids ...string) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.Key(id)
	}
	return c.backend.Del(ctx, keys...)
}

func (c *Versioned[T]) ttlOr(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return c.ttl
}

func (c *Versioned[T]) decode(ctx context.Context, key string, raw []byte) (entry, bool) {
	e, err := decodeEntry(raw)
	if err != nil {
		c.logDecodeFailure(ctx, key, err)
		return entry{}, false
	}
	return e, true
}

func (c *Versioned[T]) value(ctx context.Context, key string, e entry) (*T, error) {
	var v T
	if err := decMode.Unmarshal(e.Payload, &v); err != nil {
		c.logDecodeFailure(ctx, key, err)
		return nil, ErrMiss
	}
	return &v, nil
}

func (c *Versioned[T]) logDecodeFailure(ctx context.Context, key string, err error) {
	slogx.FromContext(ctx).Warn("cache entry discarded",
		"key", key,
		"err", errors.Join(domain.ErrDeserialization, err),
	)
}
