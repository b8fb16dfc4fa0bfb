package thumbnail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/astrogo/fitsio"
)

func writeFITS(t *testing.T, width, height int, data []float32) []byte {
	t.Helper()

	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	if err != nil {
		t.Fatalf("create fits: %v", err)
	}
	img := fitsio.NewImage(-32, []int{width, height})
	defer img.Close()

	if err := img.Write(&data); err != nil {
		t.Fatalf("write image: %v", err)
	}
	if err := f.Write(img); err != nil {
		t.Fatalf("write hdu: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close fits: %v", err)
	}
	return buf.Bytes()
}

func decodePNG(t *testing.T, encoded string) image.Image {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("thumbnail is not base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("thumbnail is not a PNG: %v", err)
	}
	return img
}

func gradient(n int) []float32 {
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i)
	}
	return data
}

func TestRenderGrayscale(t *testing.T) {
	encoded, err := Renderer{}.Render(bytes.NewReader(writeFITS(t, 8, 4, gradient(32))))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	img := decodePNG(t, encoded)
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
		t.Fatalf("bounds = %v, want 8x4", b)
	}

	first, _, _, _ := img.At(0, 0).RGBA()
	last, _, _, _ := img.At(7, 3).RGBA()
	if first != 0 {
		t.Errorf("first pixel = %d, want black", first)
	}
	if last != 0xffff {
		t.Errorf("last pixel = %d, want white", last)
	}
}

func TestRenderDownscales(t *testing.T) {
	encoded, err := Renderer{MaxWidth: 4, MaxHeight: 4}.Render(bytes.NewReader(writeFITS(t, 16, 8, gradient(128))))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if b := decodePNG(t, encoded).Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Errorf("bounds = %v, want 4x2", b)
	}
}

func TestRenderNaNIsBlack(t *testing.T) {
	data := gradient(4)
	data[3] = float32(math.NaN())

	encoded, err := Renderer{}.Render(bytes.NewReader(writeFITS(t, 2, 2, data)))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	img := decodePNG(t, encoded)
	if v, _, _, _ := img.At(1, 1).RGBA(); v != 0 {
		t.Errorf("NaN pixel = %d, want 0", v)
	}
	if v, _, _, _ := img.At(0, 1).RGBA(); v != 0xffff {
		t.Errorf("max pixel = %d, want white", v)
	}
}

func TestRenderConstantImage(t *testing.T) {
	data := []float32{5, 5, 5, 5}
	if _, err := (Renderer{}).Render(bytes.NewReader(writeFITS(t, 2, 2, data))); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
}

func TestRenderRejectsNonFITS(t *testing.T) {
	_, err := Renderer{}.Render(strings.NewReader("this is not a fits file"))
	if !errors.Is(err, ErrNotFITS) {
		t.Errorf("Render() error = %v, want ErrNotFITS", err)
	}

	_, err = Renderer{}.Render(bytes.NewReader(nil))
	if !errors.Is(err, ErrNotFITS) {
		t.Errorf("Render(empty) error = %v, want ErrNotFITS", err)
	}
}
