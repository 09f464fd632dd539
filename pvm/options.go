package pvm

import (
	"context"

	"ricklepick.dev/ricklepick/pklmem"
)

// PersistentLoader resolves a persistent id (PERSID, BINPERSID) to a Value.
type PersistentLoader = func(ctx context.Context, pid pklmem.Value) (pklmem.Value, error)

type Option func(c *config)

type config struct {
	ctx        context.Context
	registry   *Registry
	persistent PersistentLoader
	limits     Limits
	trace      int
}

func defaultConfig() config {
	return config{
		ctx:    context.Background(),
		limits: DefaultLimits(),
	}
}

// WithContext sets the context used for logging, cancellation, and passed to extensions.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		c.ctx = ctx
	}
}

// WithRegistry sets the extensions consulted by REDUCE.
func WithRegistry(r *Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithPersistentLoader sets the function used to resolve persistent ids.
// Without one, persistent ids decode to *pklmem.PersistentID placeholders.
func WithPersistentLoader(fn PersistentLoader) Option {
	return func(c *config) {
		c.persistent = fn
	}
}

func WithLimits(l Limits) Option {
	return func(c *config) {
		c.limits = l.withDefaults()
	}
}

// WithTrace makes the Machine remember the last n instructions it decoded.
// They are available from Recent.
func WithTrace(n int) Option {
	return func(c *config) {
		c.trace = n
	}
}
