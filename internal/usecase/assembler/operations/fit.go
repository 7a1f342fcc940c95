package operations

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"video-batcher/internal/domain"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Fitter maps arbitrary source images onto a fixed-size canvas.
type Fitter struct {
	canvas domain.Canvas
	scaler xdraw.Scaler
}

func NewFitter(canvas domain.Canvas) *Fitter {
	return &Fitter{
		canvas: canvas,
		scaler: xdraw.CatmullRom,
	}
}

func (f *Fitter) Canvas() domain.Canvas {
	return f.canvas
}

// Fit decodes data, normalizes EXIF orientation and fits the result to the canvas.
// When data cannot be decoded it returns a black canvas-sized frame together with
// an error wrapping ErrDecode, so the caller picks the substitution policy.
func (f *Fitter) Fit(data []byte, policy domain.FitPolicy) (*image.RGBA, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return BlackFrame(f.canvas), fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return f.FitImage(img, policy)
}

func (f *Fitter) FitImage(img image.Image, policy domain.FitPolicy) (*image.RGBA, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return BlackFrame(f.canvas), fmt.Errorf("%w: empty image", ErrDecode)
	}

	switch policy {
	case domain.FitFillCrop:
		return f.fillCrop(img), nil
	case domain.FitSideFit, "":
		return f.sideFit(img), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, policy)
	}
}

// fillCrop scales so the image covers both axes, then center-crops the overflow.
// Only the visible part of the source is resampled.
func (f *Fitter) fillCrop(img image.Image) *image.RGBA {
	b := img.Bounds()
	tw, th := f.canvas.Width, f.canvas.Height

	scale := math.Max(float64(tw)/float64(b.Dx()), float64(th)/float64(b.Dy()))
	newW := max(tw, int(math.Round(float64(b.Dx())*scale)))
	newH := max(th, int(math.Round(float64(b.Dy())*scale)))

	x0, x1 := visibleSpan(b.Min.X, b.Dx(), newW, (newW-tw)/2, tw)
	y0, y1 := visibleSpan(b.Min.Y, b.Dy(), newH, (newH-th)/2, th)

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	f.scaler.Scale(dst, dst.Bounds(), img, image.Rect(x0, y0, x1, y1), xdraw.Src, nil)
	return dst
}

// sideFit matches the canvas width exactly. A short result is centered on black
// (bars top and bottom), a tall one is center-cropped vertically.
func (f *Fitter) sideFit(img image.Image) *image.RGBA {
	b := img.Bounds()
	tw, th := f.canvas.Width, f.canvas.Height

	scale := float64(tw) / float64(b.Dx())
	newH := max(1, int(float64(b.Dy())*scale))

	dst := BlackFrame(f.canvas)
	if newH <= th {
		offsetY := (th - newH) / 2
		f.scaler.Scale(dst, image.Rect(0, offsetY, tw, offsetY+newH), img, b, xdraw.Src, nil)
		return dst
	}

	y0, y1 := visibleSpan(b.Min.Y, b.Dy(), newH, (newH-th)/2, th)
	f.scaler.Scale(dst, dst.Bounds(), img, image.Rect(b.Min.X, y0, b.Max.X, y1), xdraw.Src, nil)
	return dst
}

// visibleSpan maps the window [offset, offset+visible) of an axis scaled from n
// to scaled pixels back onto source coordinates starting at lo.
func visibleSpan(lo, n, scaled, offset, visible int) (int, int) {
	ratio := float64(n) / float64(scaled)
	start := int(float64(offset) * ratio)
	end := int(math.Round(float64(offset+visible) * ratio))
	end = min(max(end, start+1), n)
	return lo + start, lo + end
}

// BlackFrame returns an opaque black canvas.
func BlackFrame(canvas domain.Canvas) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, canvas.Width, canvas.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	return dst
}
