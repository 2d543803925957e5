package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"unicode/utf8"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/starford/codestash/internal/apperr"
	"github.com/starford/codestash/internal/symbology"
)

// Fixed generator parameters.
const (
	LinearScale     = 2
	MatrixScale     = 8
	LinearBarHeight = 32 // modules, before scaling
	LinearQuietZone = 7  // modules on every side, before scaling
	MatrixRecovery  = qrcode.Medium
)

// Local renders Code 128 and QR codes in-process.
type Local struct{}

// NewLocal returns the on-device renderer.
func NewLocal() *Local { return &Local{} }

// Render implements Renderer. Symbologies other than Code128 and QR return
// apperr.ErrUnsupportedSymbology; payloads the generator rejects return
// apperr.ErrEncoding.
func (l *Local) Render(_ context.Context, payload string, sym symbology.Symbology) ([]byte, error) {
	if !utf8.ValidString(payload) {
		return nil, fmt.Errorf("render: payload is not valid UTF-8: %w", apperr.ErrEncoding)
	}

	var (
		img image.Image
		err error
	)
	switch sym {
	case symbology.Code128:
		img, err = linear(payload)
	case symbology.QR:
		img, err = matrix(payload)
	default:
		return nil, fmt.Errorf("render: local %s: %w", sym, apperr.ErrUnsupportedSymbology)
	}
	if err != nil {
		return nil, err
	}
	return encodePNG(img)
}

// linear draws a Code 128 symbol with a quiet zone, scaled LinearScale times.
func linear(payload string) (image.Image, error) {
	if payload == "" {
		return nil, fmt.Errorf("render: empty code128 payload: %w", apperr.ErrEncoding)
	}
	bc, err := code128.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("render: code128: %v: %w", err, apperr.ErrEncoding)
	}
	modules := bc.Bounds().Dx()
	if modules == 0 {
		return nil, fmt.Errorf("render: code128 produced no output: %w", apperr.ErrEncoding)
	}

	scaled, err := barcode.Scale(bc, modules*LinearScale, LinearBarHeight*LinearScale)
	if err != nil {
		return nil, fmt.Errorf("render: code128 scale: %v: %w", err, apperr.ErrEncoding)
	}

	margin := LinearQuietZone * LinearScale
	sb := scaled.Bounds()
	out := image.NewGray(image.Rect(0, 0, sb.Dx()+2*margin, sb.Dy()+2*margin))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, sb.Add(image.Pt(margin, margin)), scaled, sb.Min, draw.Src)
	return out, nil
}

// matrix draws a QR symbol, including its standard border, scaled
// MatrixScale times.
func matrix(payload string) (image.Image, error) {
	q, err := qrcode.New(payload, MatrixRecovery)
	if err != nil {
		return nil, fmt.Errorf("render: qr: %v: %w", err, apperr.ErrEncoding)
	}
	bitmap := q.Bitmap()
	n := len(bitmap)
	if n == 0 {
		return nil, fmt.Errorf("render: qr produced no output: %w", apperr.ErrEncoding)
	}

	out := image.NewGray(image.Rect(0, 0, n*MatrixScale, n*MatrixScale))
	for y, row := range bitmap {
		for x, dark := range row {
			c := color.Gray{Y: 0xff}
			if dark {
				c = color.Gray{Y: 0x00}
			}
			cell := image.Rect(x*MatrixScale, y*MatrixScale, (x+1)*MatrixScale, (y+1)*MatrixScale)
			draw.Draw(out, cell, image.NewUniform(c), image.Point{}, draw.Src)
		}
	}
	return out, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render: png encode: %w", err)
	}
	return buf.Bytes(), nil
}
