package compose

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"strings"
)

// MockComposer is a deterministic stand-in for the real provider: each
// variant is the room photo with a dark banner whose width encodes the
// variant number, so outputs are distinguishable in tests and demos.
type MockComposer struct{}

var _ Composer = (*MockComposer)(nil)

func NewMockComposer() *MockComposer {
	return &MockComposer{}
}

func (MockComposer) Composite(_ context.Context, _, room []byte, _ string) ([][]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(room))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeImage, err)
	}

	out := make([][]byte, 0, VariantCount)
	for i := 0; i < VariantCount; i++ {
		rgba := image.NewRGBA(src.Bounds())
		draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)

		banner := image.Rect(10, 10, 360+40*i, 80)
		banner = banner.Intersect(rgba.Bounds())
		draw.Draw(rgba, banner, &image.Uniform{color.RGBA{A: 200}}, image.Point{}, draw.Over)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("compose: encode variant %d: %w", i+1, err)
		}
		out = append(out, buf.Bytes())
	}
	return out, nil
}

func (MockComposer) Caption(_ context.Context, brief string, staged bool) (string, error) {
	brief = strings.TrimSpace(brief)
	if brief == "" {
		return "", ErrEmptyCaption
	}
	runes := []rune(brief)
	if len(runes) > 120 {
		runes = runes[:120]
	}
	disclosure := ""
	if staged {
		disclosure = " One or more photos are virtually staged."
	}
	return strings.TrimSpace(string(runes) + " — #ForSale #RealEstate #Home" + disclosure), nil
}
