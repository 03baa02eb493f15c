// Package media stores uploaded recipe images on the local filesystem and
// inspects their content (format detection, BlurHash placeholders).
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	"github.com/bbrks/go-blurhash"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// ErrNotImage is returned when the payload does not decode as a supported image.
var ErrNotImage = errors.New("not a supported image")

// Decoding allocates the full pixel buffer, so dimensions are checked from the
// header before the image is decoded.
const (
	maxImageSide   = 8000
	maxImagePixels = 40_000_000
)

// blurHashSize bounds the thumbnail used for BlurHash; a placeholder does not
// need more detail than this.
const blurHashSize = 64

var extByFormat = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
}

// Decoded is an image payload that passed validation.
type Decoded struct {
	Image  image.Image
	Format string // name reported by the decoder ("jpeg", "png", ...)
	Ext    string // file extension including the dot
}

// Inspect decodes data and reports its format. Anything that is not a JPEG,
// PNG, GIF or WebP image, or whose declared size exceeds 8000 px per side or
// 40 megapixels, yields ErrNotImage.
func Inspect(data []byte) (*Decoded, error) {
	if len(data) == 0 {
		return nil, ErrNotImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	ext, ok := extByFormat[format]
	if !ok {
		return nil, fmt.Errorf("%w: format %q", ErrNotImage, format)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrNotImage)
	}
	return &Decoded{Image: img, Format: format, Ext: ext}, nil
}

func checkDimensions(w, h int) error {
	switch {
	case w <= 0 || h <= 0:
		return fmt.Errorf("%w: empty image", ErrNotImage)
	case w > maxImageSide || h > maxImageSide, int64(w)*int64(h) > maxImagePixels:
		return fmt.Errorf("%w: %dx%d exceeds the pixel limit", ErrNotImage, w, h)
	}
	return nil
}

// BlurHash encodes a 4x3 component BlurHash of img.
func BlurHash(img image.Image) (string, error) {
	hash, err := blurhash.Encode(4, 3, resizeForBlurHash(img))
	if err != nil {
		return "", fmt.Errorf("encode blurhash: %w", err)
	}
	return hash, nil
}

// resizeForBlurHash nearest-neighbor scales img to fit blurHashSize.
func resizeForBlurHash(img image.Image) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= blurHashSize && srcH <= blurHashSize {
		return img
	}

	var dstW, dstH int
	if srcW > srcH {
		dstW = blurHashSize
		dstH = max(1, srcH*blurHashSize/srcW)
	} else {
		dstH = blurHashSize
		dstW = max(1, srcW*blurHashSize/srcH)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xRatio := float64(srcW) / float64(dstW)
	yRatio := float64(srcH) / float64(dstH)
	for y := 0; y < dstH; y++ {
		for x := 0; x < dstW; x++ {
			dst.Set(x, y, img.At(bounds.Min.X+int(float64(x)*xRatio), bounds.Min.Y+int(float64(y)*yRatio)))
		}
	}
	return dst
}
