package assets

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageData is a decoded image in tightly packed RGBA8, top row first.
type ImageData struct {
	Width  int
	Height int
	Pixels []byte
}

func LoadTexture(path string) (ImageData, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageData{}, err
	}
	defer f.Close()
	img, err := DecodeTexture(f)
	if err != nil {
		return ImageData{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// DecodeTexture decodes any registered format and converts it to RGBA8
// regardless of the source channel count.
func DecodeTexture(r io.Reader) (ImageData, error) {
	src, format, err := image.Decode(r)
	if errors.Is(err, image.ErrFormat) {
		return ImageData{}, ErrUnsupportedImage
	}
	if err != nil {
		return ImageData{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, err)
	}
	b := src.Bounds()
	if b.Empty() {
		return ImageData{}, fmt.Errorf("%w: empty %s image", ErrUnsupportedImage, format)
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return ImageData{Width: b.Dx(), Height: b.Dy(), Pixels: dst.Pix}, nil
}

// FlipY reverses the row order in place.
func (d ImageData) FlipY() {
	stride := d.Width * 4
	row := make([]byte, stride)
	for top, bottom := 0, d.Height-1; top < bottom; top, bottom = top+1, bottom-1 {
		t := d.Pixels[top*stride : (top+1)*stride]
		b := d.Pixels[bottom*stride : (bottom+1)*stride]
		copy(row, t)
		copy(t, b)
		copy(b, row)
	}
}
