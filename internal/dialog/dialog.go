// Package dialog is the boundary to the native file picker.
package dialog

import (
	"context"
	"errors"

	"github.com/alx-home/msfs2024-vfrnav-efb/internal/protocol"
)

// ErrUnavailable is returned when no file picker can be shown.
var ErrUnavailable = errors.New("dialog: unavailable")

// Opener shows a file picker starting at path. An empty result with a nil
// error means the user cancelled.
type Opener interface {
	OpenFile(ctx context.Context, path string, filters []protocol.Filter) (string, error)
}

// Headless is the Opener used when the bridge runs without a desktop.
type Headless struct{}

func (Headless) OpenFile(context.Context, string, []protocol.Filter) (string, error) {
	return "", ErrUnavailable
}

// Func adapts a function to Opener.
type Func func(ctx context.Context, path string, filters []protocol.Filter) (string, error)

func (f Func) OpenFile(ctx context.Context, path string, filters []protocol.Filter) (string, error) {
	return f(ctx, path, filters)
}
