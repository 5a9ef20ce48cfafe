// Package imageload turns leaf photos into classifier input tensors.
package imageload

import (
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"time"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/tphakala/leafscan/internal/errors"
	"github.com/tphakala/leafscan/internal/logger"
)

const (
	// InputSize is the edge length the classifier expects.
	InputSize = 224
	// Channels is the number of colour channels fed to the classifier.
	Channels = 3
)

// ErrImageLoad is returned, wrapped, when an image cannot be opened or decoded.
var ErrImageLoad = errors.NewStd("image load failed")

// Tensor is a single image in NHWC layout with values in [0,1].
type Tensor struct {
	Data     []float32
	Height   int
	Width    int
	Channels int
}

// Shape returns the tensor shape including the batch dimension.
func (t Tensor) Shape() [4]int {
	return [4]int{1, t.Height, t.Width, t.Channels}
}

// Load reads the image at path, resizes it to InputSize x InputSize with
// nearest-neighbour sampling and scales each channel to [0,1].
func Load(path string) (Tensor, error) {
	start := time.Now()

	img, err := decode(path)
	if err != nil {
		return Tensor{}, err
	}

	resized := image.NewNRGBA(image.Rect(0, 0, InputSize, InputSize))
	xdraw.NearestNeighbor.Scale(resized, resized.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	t := Tensor{
		Data:     toFloat(resized),
		Height:   InputSize,
		Width:    InputSize,
		Channels: Channels,
	}

	GetLogger().Debug("image preprocessed",
		logger.Int("src_width", img.Bounds().Dx()),
		logger.Int("src_height", img.Bounds().Dy()),
		logger.Duration("took", time.Since(start)))

	return t, nil
}

func decode(path string) (image.Image, error) {
	if path == "" {
		return nil, loadError(fmt.Errorf("%w: empty path", ErrImageLoad), path, 0)
	}

	f, err := os.Open(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		return nil, loadError(fmt.Errorf("%w: %w", ErrImageLoad, err), path, 0)
	}
	defer func() { _ = f.Close() }()

	var size int64
	if info, statErr := f.Stat(); statErr == nil {
		size = info.Size()
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, loadError(fmt.Errorf("%w: decode %s: %w", ErrImageLoad, path, err), path, size)
	}
	if img.Bounds().Empty() {
		return nil, loadError(fmt.Errorf("%w: %s has no pixels", ErrImageLoad, path), path, size)
	}

	GetLogger().Trace("image decoded", logger.String("format", format), logger.Int64("bytes", size))
	return img, nil
}

func loadError(err error, path string, size int64) error {
	return errors.New(err).
		Component("imageload").
		Category(errors.CategoryImageLoad).
		FileContext(path, size).
		Build()
}

// toFloat flattens an NRGBA image into NHWC float32 values, dropping alpha.
func toFloat(img *image.NRGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float32, h*w*Channels)

	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := range w {
			src := row[x*4 : x*4+3]
			base := (y*w + x) * Channels
			out[base+0] = float32(src[0]) / 255.0
			out[base+1] = float32(src[1]) / 255.0
			out[base+2] = float32(src[2]) / 255.0
		}
	}
	return out
}
