// Package render produces PNG images for barcode payloads, either on-device
// or through a remote image API.
package render

import (
	"context"
	"errors"

	"github.com/starford/codestash/internal/apperr"
	"github.com/starford/codestash/internal/symbology"
)

// ContentType is the media type of every image this package returns.
const ContentType = "image/png"

// Renderer turns a payload into image bytes for one symbology.
type Renderer interface {
	Render(ctx context.Context, payload string, sym symbology.Symbology) ([]byte, error)
}

// Cascade asks Local first and falls back to Remote when the local generator
// cannot help. A nil Remote turns the fallback off.
type Cascade struct {
	Local  Renderer
	Remote Renderer
}

// Render implements Renderer.
func (c Cascade) Render(ctx context.Context, payload string, sym symbology.Symbology) ([]byte, error) {
	if c.Local != nil && symbology.SupportsLocal(sym) {
		img, err := c.Local.Render(ctx, payload, sym)
		if err == nil {
			return img, nil
		}
		if !Recoverable(err) {
			return nil, err
		}
	}
	if c.Remote == nil || !symbology.SupportsRemote(sym) {
		return nil, apperr.ErrUnsupportedSymbology
	}
	return c.Remote.Render(ctx, payload, sym)
}

// Recoverable reports whether a local failure should fall through to the
// remote renderer.
func Recoverable(err error) bool {
	return errors.Is(err, apperr.ErrEncoding) || errors.Is(err, apperr.ErrUnsupportedSymbology)
}
