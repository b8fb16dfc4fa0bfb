// Package thumbnail renders the primary image of a FITS file as a grayscale
// PNG encoded in base64.
package thumbnail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/astrogo/fitsio"
	"golang.org/x/image/draw"
)

// ErrNotFITS is returned for input without a readable primary image.
var ErrNotFITS = errors.New("not a FITS image")

// Renderer holds the output bounds. A zero bound leaves that axis unlimited.
type Renderer struct {
	MaxWidth  int
	MaxHeight int
}

// Render decodes src and returns the thumbnail. Every buffer is local to the
// call.
func (r Renderer) Render(src io.Reader) (string, error) {
	f, err := fitsio.Open(src)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFITS, err)
	}
	defer f.Close()

	if len(f.HDUs()) == 0 {
		return "", fmt.Errorf("%w: no HDU", ErrNotFITS)
	}
	hdu, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return "", fmt.Errorf("%w: primary HDU is not an image", ErrNotFITS)
	}

	hdr := hdu.Header()
	axes := hdr.Axes()
	if len(axes) < 2 || axes[0] <= 0 || axes[1] <= 0 {
		return "", fmt.Errorf("%w: primary HDU has %d axes", ErrNotFITS, len(axes))
	}

	total := 1
	for _, n := range axes {
		total *= n
	}
	values, err := readPixels(hdu, hdr.Bitpix(), total)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFITS, err)
	}

	width, height := axes[0], axes[1]
	// only the first plane of a cube is drawn
	plane := values[:width*height]

	scale, zero := cardFloat(hdr, "BSCALE", 1), cardFloat(hdr, "BZERO", 0)
	if scale != 1 || zero != 0 {
		for i, v := range plane {
			plane[i] = v*scale + zero
		}
	}

	gray := toGray(plane, width, height)
	out := fit(gray, r.MaxWidth, r.MaxHeight)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func readPixels(img fitsio.Image, bitpix, n int) ([]float64, error) {
	out := make([]float64, n)
	switch bitpix {
	case 8:
		raw := make([]byte, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 16:
		raw := make([]int16, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 32:
		raw := make([]int32, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 64:
		raw := make([]int64, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case -32:
		raw := make([]float32, n)
		if err := img.Read(&raw); err != nil {
			return nil, err
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case -64:
		if err := img.Read(&out); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported BITPIX %d", bitpix)
	}
	return out, nil
}

func cardFloat(hdr *fitsio.Header, name string, fallback float64) float64 {
	card := hdr.Get(name)
	if card == nil {
		return fallback
	}
	switch v := card.Value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}

// toGray maps the finite range of values linearly onto 0..255. Non-finite
// pixels are drawn black. Row 0 of the data is the top row of the image.
func toGray(values []float64, width, height int) *image.Gray {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	span := hi - lo
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := values[y*width+x]
			if math.IsNaN(v) || math.IsInf(v, 0) || span <= 0 {
				continue
			}
			img.Pix[y*img.Stride+x] = uint8(math.Round((v - lo) / span * 255))
		}
	}
	return img
}

// fit downscales src to fit within maxW x maxH keeping its aspect ratio.
func fit(src *image.Gray, maxW, maxH int) image.Image {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	ratio := 1.0
	if maxW > 0 && w > maxW {
		ratio = math.Min(ratio, float64(maxW)/float64(w))
	}
	if maxH > 0 && h > maxH {
		ratio = math.Min(ratio, float64(maxH)/float64(h))
	}
	if ratio == 1 {
		return src
	}

	dw := int(math.Max(1, math.Round(float64(w)*ratio)))
	dh := int(math.Max(1, math.Round(float64(h)*ratio)))
	dst := image.NewGray(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
