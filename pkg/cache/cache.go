package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
)

const (
	defaultMaxTries       = 4
	defaultInitialBackoff = 50 * time.Millisecond
	defaultMaxBackoff     = time.Second
)

// Invalidator applique le protocole de cohérence : lecture read-through, puis suppression
// synchrone par préfixe après chaque écriture durable.
type Invalidator struct {
	store    Store
	logger   *slog.Logger
	maxTries uint
	initial  time.Duration
	max      time.Duration
}

type Option func(*Invalidator)

// WithMaxTries borne le nombre de tentatives d'une invalidation.
func WithMaxTries(n uint) Option {
	return func(i *Invalidator) { i.maxTries = n }
}

func WithBackoff(initial, max time.Duration) Option {
	return func(i *Invalidator) { i.initial, i.max = initial, max }
}

func NewInvalidator(store Store, logger *slog.Logger, opts ...Option) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Invalidator{
		store:    store,
		logger:   logger.With("component", "cache"),
		maxTries: defaultMaxTries,
		initial:  defaultInitialBackoff,
		max:      defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ReadThrough renvoie la valeur en cache ou appelle loader puis la stocke pour ttl.
// Les erreurs du loader ne sont jamais mises en cache. Un cache en panne n'empêche pas la
// lecture : on retombe sur le loader.
func ReadThrough[T any](ctx context.Context, inv *Invalidator, key string, ttl time.Duration, loader func(context.Context) (T, error)) (T, error) {
	raw, err := inv.store.Get(ctx, key)
	switch {
	case err == nil:
		var v T
		if uerr := json.Unmarshal(raw, &v); uerr == nil {
			inv.logger.Debug("cache hit", "key", key)
			return v, nil
		}
		inv.logger.Warn("corrupted cache entry, reloading", "key", key)
	case !errors.Is(err, ErrMiss):
		inv.logger.Warn("cache read failed, falling back to loader", "key", key, "error", err)
	}

	v, err := loader(ctx)
	if err != nil {
		return v, err
	}

	b, err := json.Marshal(v)
	if err != nil {
		inv.logger.Warn("cache encode failed", "key", key, "error", err)
		return v, nil
	}
	if err := inv.store.SetWithTTL(ctx, key, b, ttl); err != nil {
		inv.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return v, nil
}

// InvalidateNamespace supprime toutes les clés qui commencent par prefix. Les échecs sont
// retentés avec un backoff exponentiel ; au-delà, ErrStorage.
func (i *Invalidator) InvalidateNamespace(ctx context.Context, prefix string) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = i.initial
	eb.MaxInterval = i.max

	deleted, err := backoff.Retry(ctx, func() (int, error) {
		return i.store.DeleteByPrefix(ctx, prefix)
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(i.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			i.logger.Warn("cache invalidation failed, retrying", "prefix", prefix, "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		i.logger.Error("cache invalidation gave up", "prefix", prefix, "error", err)
		return fmt.Errorf("%w: invalidate %s: %v", apperr.ErrStorage, prefix, err)
	}

	i.logger.Debug("cache namespace invalidated", "prefix", prefix, "keys", deleted)
	return nil
}

// Key assemble une clé "{entity}:{part}:{part}".
func Key(entity string, parts ...any) string {
	var b strings.Builder
	b.WriteString(entity)
	for _, p := range parts {
		b.WriteByte(':')
		fmt.Fprint(&b, p)
	}
	return b.String()
}

// Prefix renvoie le préfixe d'invalidation d'un espace de noms ("posts" -> "posts:").
func Prefix(entity string, parts ...any) string {
	return Key(entity, parts...) + ":"
}
