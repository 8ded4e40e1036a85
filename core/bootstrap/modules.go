package bootstrap

import "context"

// Warmer preloads data the bot cannot serve without, so a broken deployment
// fails at startup instead of on the first update.
type Warmer interface {
	Warm(ctx context.Context) error
}

// WarmerFunc adapts a bare function to the Warmer interface.
type WarmerFunc func(ctx context.Context) error

// Warm executes the underlying function.
func (f WarmerFunc) Warm(ctx context.Context) error {
	return f(ctx)
}

// NamedWarmer labels a Warmer for startup logs and errors.
type NamedWarmer struct {
	Name string
	Warmer
}
