package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// JPEGQuality for all rendered output variants.
const JPEGQuality = 92

// CropSize is one social-media aspect target.
type CropSize struct {
	Name   string
	Width  int
	Height int
}

// CropSizes are the variants rendered for every output: feed square,
// portrait, and story.
var CropSizes = []CropSize{
	{Name: "square", Width: 1080, Height: 1080},
	{Name: "portrait", Width: 1080, Height: 1350},
	{Name: "story", Width: 1080, Height: 1920},
}

// SocialCrops center-crops and scales the image to each crop size,
// returning JPEG bytes in CropSizes order.
func SocialCrops(imgBytes []byte) ([][]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeImage, err)
	}

	out := make([][]byte, 0, len(CropSizes))
	for _, size := range CropSizes {
		dst := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, coverRect(src.Bounds(), size.Width, size.Height), xdraw.Src, nil)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("compose: encode %s crop: %w", size.Name, err)
		}
		out = append(out, buf.Bytes())
	}
	return out, nil
}

// coverRect is the largest centered sub-rectangle of bounds matching the
// target aspect ratio.
func coverRect(bounds image.Rectangle, width, height int) image.Rectangle {
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	// Compare aspect ratios without floats: srcW/srcH vs width/height.
	if srcW*height > width*srcH {
		// Source is wider; trim the sides.
		cropW := srcH * width / height
		x0 := bounds.Min.X + (srcW-cropW)/2
		return image.Rect(x0, bounds.Min.Y, x0+cropW, bounds.Max.Y)
	}
	// Source is taller; trim top and bottom.
	cropH := srcW * height / width
	y0 := bounds.Min.Y + (srcH-cropH)/2
	return image.Rect(bounds.Min.X, y0, bounds.Max.X, y0+cropH)
}
