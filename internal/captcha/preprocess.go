package captcha

import (
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ErrImageTooSmall is returned by strategies when the capture is below the
// minimum size worth feeding to OCR. The pipeline skips such variants.
var ErrImageTooSmall = errors.New("captcha: image too small to preprocess")

const (
	minWidth  = 16
	minHeight = 8
)

// Strategy is one deterministic image transform. Apply must never mutate its
// input; all imaging operations used here return fresh buffers.
type Strategy struct {
	Name  string
	Apply func(image.Image) (image.Image, error)
}

// DefaultStrategies returns the fixed, ordered strategy list. Order matters:
// candidate tie-breaks fall back to the earliest producing pair.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "gray-otsu", Apply: grayOtsu},
		{Name: "gray-adaptive", Apply: grayAdaptive},
		{Name: "upscale-sharpen", Apply: upscaleSharpen},
		{Name: "contrast-otsu", Apply: contrastOtsu},
		{Name: "inverted", Apply: invertedOtsu},
		{Name: "best-channel", Apply: bestChannelOtsu},
	}
}

// Preprocess applies every strategy to img in order. A strategy that cannot
// handle the image is skipped, not fatal.
func Preprocess(img image.Image, strategies []Strategy) []Variant {
	variants := make([]Variant, 0, len(strategies))
	for _, s := range strategies {
		out, err := s.Apply(img)
		if err != nil {
			continue
		}
		variants = append(variants, Variant{Strategy: s.Name, Img: out})
	}
	return variants
}

func checkSize(img image.Image) error {
	b := img.Bounds()
	if b.Dx() < minWidth || b.Dy() < minHeight {
		return ErrImageTooSmall
	}
	return nil
}

func grayOtsu(img image.Image) (image.Image, error) {
	if err := checkSize(img); err != nil {
		return nil, err
	}
	g := toGray(imaging.Grayscale(img))
	return threshold(g, otsuLevel(g)), nil
}

func grayAdaptive(img image.Image) (image.Image, error) {
	if err := checkSize(img); err != nil {
		return nil, err
	}
	return adaptiveThreshold(toGray(imaging.Grayscale(img)), 11, 2), nil
}

func upscaleSharpen(img image.Image) (image.Image, error) {
	if err := checkSize(img); err != nil {
		return nil, err
	}
	b := img.Bounds()
	up := imaging.Resize(img, b.Dx()*3, 0, imaging.Lanczos)
	sharp := imaging.Sharpen(up, 1.0)
	g := toGray(imaging.Grayscale(sharp))
	return threshold(g, otsuLevel(g)), nil
}

func contrastOtsu(img image.Image) (image.Image, error) {
	if err := checkSize(img); err != nil {
		return nil, err
	}
	g := toGray(imaging.Grayscale(imaging.AdjustContrast(img, 60)))
	return threshold(g, otsuLevel(g)), nil
}

func invertedOtsu(img image.Image) (image.Image, error) {
	if err := checkSize(img); err != nil {
		return nil, err
	}
	g := toGray(imaging.Grayscale(imaging.Invert(img)))
	return threshold(g, otsuLevel(g)), nil
}

// bestChannelOtsu binarizes the single color channel with the highest
// variance. Codes drawn in one color stand out in their own channel while a
// grayscale mix dilutes them.
func bestChannelOtsu(img image.Image) (image.Image, error) {
	if err := checkSize(img); err != nil {
		return nil, err
	}
	channels := splitChannels(img)
	best := channels[0]
	bestVar := grayVariance(channels[0])
	for _, ch := range channels[1:] {
		if v := grayVariance(ch); v > bestVar {
			best, bestVar = ch, v
		}
	}
	return threshold(best, otsuLevel(best)), nil
}

func splitChannels(img image.Image) [3]*image.Gray {
	b := img.Bounds()
	var out [3]*image.Gray
	for i := range out {
		out[i] = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out[0].SetGray(x, y, color.Gray{Y: uint8(r >> 8)})
			out[1].SetGray(x, y, color.Gray{Y: uint8(g >> 8)})
			out[2].SetGray(x, y, color.Gray{Y: uint8(bl >> 8)})
		}
	}
	return out
}

func grayVariance(g *image.Gray) float64 {
	b := g.Bounds()
	n := float64(b.Dx() * b.Dy())
	if n == 0 {
		return 0
	}
	sum := 0.0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += float64(g.GrayAt(x, y).Y)
		}
	}
	mean := sum / n
	variance := 0.0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			d := float64(g.GrayAt(x, y).Y) - mean
			variance += d * d
		}
	}
	return variance / n
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)))
		}
	}
	return out
}

// otsuLevel picks the global threshold that maximizes between-class variance
// over the grayscale histogram.
func otsuLevel(g *image.Gray) uint8 {
	var hist [256]int
	total := 0
	b := g.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[g.GrayAt(x, y).Y]++
			total++
		}
	}
	if total == 0 {
		return 128
	}

	sum := 0.0
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}

	var (
		sumB, wB float64
		best     float64
		level    uint8
	)
	totalF := float64(total)
	for i := 0; i < 256; i++ {
		wB += float64(hist[i])
		if wB == 0 {
			continue
		}
		wF := totalF - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * float64(hist[i])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			level = uint8(i)
		}
	}
	return level
}

func threshold(g *image.Gray, level uint8) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if g.GrayAt(x, y).Y > level {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}

// adaptiveThreshold binarizes against the mean of a block x block window
// around each pixel, offset by c. Captures are tiny so the naive window scan
// is fine.
func adaptiveThreshold(g *image.Gray, block, c int) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)
	r := block / 2
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum, n := 0, 0
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					px, py := x+dx, y+dy
					if px < b.Min.X || px >= b.Max.X || py < b.Min.Y || py >= b.Max.Y {
						continue
					}
					sum += int(g.GrayAt(px, py).Y)
					n++
				}
			}
			mean := sum / n
			if int(g.GrayAt(x, y).Y) > mean-c {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}
