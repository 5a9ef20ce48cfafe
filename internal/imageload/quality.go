package imageload

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
)

// Thresholds for the lighting and contrast recommendations.
const (
	MinBrightness = 0.3
	MaxBrightness = 0.8
	MinContrast   = 0.2
)

// Quality describes how suitable a photo is for classification.
type Quality struct {
	Brightness float64 // mean of all RGB samples, scaled to [0,1]
	Contrast   float64 // standard deviation of all RGB samples, scaled to [0,1]
	Width      int
	Height     int
}

// GoodLighting reports whether brightness is inside the usable range.
func (q Quality) GoodLighting() bool {
	return q.Brightness > MinBrightness && q.Brightness < MaxBrightness
}

// AdequateContrast reports whether the photo has enough contrast.
func (q Quality) AdequateContrast() bool {
	return q.Contrast > MinContrast
}

// Rating is "Good" or "Poor (too dark/bright)".
func (q Quality) Rating() string {
	if q.GoodLighting() {
		return "Good"
	}
	return "Poor (too dark/bright)"
}

// Recommendations returns one line per check.
func (q Quality) Recommendations() []string {
	recs := make([]string, 0, 2)
	if q.GoodLighting() {
		recs = append(recs, "Good lighting conditions")
	} else {
		recs = append(recs, "Adjust lighting for better image quality")
	}
	if q.AdequateContrast() {
		recs = append(recs, "Image contrast is adequate")
	} else {
		recs = append(recs, "Consider retaking photo with better contrast")
	}
	return recs
}

// String renders the analysis as shown to the user.
func (q Quality) String() string {
	var sb strings.Builder
	sb.WriteString("Advanced Image Analysis:\n\n")
	fmt.Fprintf(&sb, "Image Quality: %s\n", q.Rating())
	fmt.Fprintf(&sb, "Brightness: %.2f%%\n", q.Brightness*100)
	fmt.Fprintf(&sb, "Contrast: %.2f%%\n", q.Contrast*100)
	fmt.Fprintf(&sb, "Resolution: %dx%d\n\n", q.Width, q.Height)
	sb.WriteString("Recommendations:\n")
	for _, r := range q.Recommendations() {
		fmt.Fprintf(&sb, "• %s\n", r)
	}
	return sb.String()
}

// Analyze computes brightness and contrast of the full-resolution image at path.
func Analyze(path string) (Quality, error) {
	img, err := decode(path)
	if err != nil {
		return Quality{}, err
	}
	return measure(img), nil
}

func measure(img image.Image) Quality {
	b := img.Bounds()
	var sum, sumSq float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c, _ := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			for _, v := range [3]uint8{c.R, c.G, c.B} {
				f := float64(v)
				sum += f
				sumSq += f * f
			}
		}
	}

	n := float64(b.Dx() * b.Dy() * Channels)
	mean := sum / n
	variance := max(sumSq/n-mean*mean, 0)

	return Quality{
		Brightness: mean / 255.0,
		Contrast:   math.Sqrt(variance) / 255.0,
		Width:      b.Dx(),
		Height:     b.Dy(),
	}
}
