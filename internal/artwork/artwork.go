// Package artwork looks up cover images for games. Every lookup is best
// effort: callers treat any error as "no image".
package artwork

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrUnavailable is returned when no image could be found
var ErrUnavailable = errors.New("artwork: unavailable")

// Finder finds an image URL for a game name
type Finder interface {
	FindImage(ctx context.Context, name string) (string, error)
}

// FinderFunc adapts a function to Finder
type FinderFunc func(ctx context.Context, name string) (string, error)

// FindImage calls f
func (f FinderFunc) FindImage(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// Chain asks each finder in turn, each under its own timeout, and returns
// the first URL found
type Chain struct {
	finders []Finder
	timeout time.Duration
}

// NewChain creates a chain. A timeout <= 0 defaults to 5 seconds.
func NewChain(timeout time.Duration, finders ...Finder) *Chain {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Chain{finders: finders, timeout: timeout}
}

// FindImage implements Finder
func (c *Chain) FindImage(ctx context.Context, name string) (string, error) {
	for _, f := range c.finders {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		url, err := c.try(ctx, f, name)
		if err != nil {
			slog.Debug("Image lookup failed", "game", name, "error", err)
			continue
		}
		if url != "" {
			return url, nil
		}
	}
	return "", ErrUnavailable
}

func (c *Chain) try(ctx context.Context, f Finder, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return f.FindImage(ctx, name)
}
