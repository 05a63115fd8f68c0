package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	defaultMaxDimension = 1920
	defaultTargetBytes  = 1 << 20
	defaultQuality      = 80
	minQuality          = 50
	qualityStep         = 10
)

// Compress re-encodes an image as JPEG, bounding its longest edge to maxDim
// pixels and stepping the quality down from the given start until the output
// fits targetBytes. The size target is best effort: once the quality floor is
// reached the last encoding is returned as-is. Inputs that fail to decode or
// encode are reported as errors.
func Compress(data []byte, maxDim int, targetBytes int64, quality int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if maxDim <= 0 {
		maxDim = defaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}

	src = shrink(src, maxDim)

	var out []byte
	for q := quality; ; q -= qualityStep {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: q}); err != nil {
			return nil, fmt.Errorf("encode image: %w", err)
		}
		out = buf.Bytes()
		if targetBytes <= 0 || int64(len(out)) <= targetBytes || q-qualityStep < minQuality {
			break
		}
	}
	return out, nil
}

// shrink scales the image so neither dimension exceeds maxDim, preserving the
// aspect ratio. Images already within bounds are returned untouched.
func shrink(src image.Image, maxDim int) image.Image {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxDim && height <= maxDim {
		return src
	}

	scale := float64(maxDim) / float64(width)
	if height > width {
		scale = float64(maxDim) / float64(height)
	}

	dstWidth := int(math.Round(float64(width) * scale))
	dstHeight := int(math.Round(float64(height) * scale))
	if dstWidth < 1 {
		dstWidth = 1
	}
	if dstHeight < 1 {
		dstHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstWidth, dstHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
