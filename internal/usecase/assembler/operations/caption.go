package operations

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"video-batcher/internal/domain"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// RenderInfo reports what the auto-fit search settled on.
type RenderInfo struct {
	FontSize     int
	Width        int
	Height       int
	Overflow     bool
	FontFallback error
}

// CaptionRenderer draws a single-line, shadowed, stroked caption centered on a
// transparent canvas-sized layer.
type CaptionRenderer struct {
	fonts *FontLoader
}

func NewCaptionRenderer(fonts *FontLoader) *CaptionRenderer {
	if fonts == nil {
		fonts = NewFontLoader()
	}
	return &CaptionRenderer{fonts: fonts}
}

func (r *CaptionRenderer) Render(text string, style domain.StyleConfig, canvas domain.Canvas) (*image.RGBA, RenderInfo, error) {
	layer := image.NewRGBA(image.Rect(0, 0, canvas.Width, canvas.Height))

	info, err := r.drawCaption(layer, text, style, canvas)
	if err != nil {
		return nil, info, err
	}

	return layer, info, nil
}

// Preview composites the caption over an opaque background for calibration.
func (r *CaptionRenderer) Preview(text string, style domain.StyleConfig, canvas domain.Canvas, background string) (*image.RGBA, RenderInfo, error) {
	bg, err := ParseColor(background, 255)
	if err != nil {
		return nil, RenderInfo{}, fmt.Errorf("failed to parse background: %w", err)
	}

	out := image.NewRGBA(image.Rect(0, 0, canvas.Width, canvas.Height))
	draw.Draw(out, out.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	layer, info, err := r.Render(text, style, canvas)
	if err != nil {
		return nil, info, err
	}

	draw.Draw(out, out.Bounds(), layer, image.Point{}, draw.Over)
	return out, info, nil
}

// FitFontSize returns the largest size in {max, max-4, ...} whose rendered
// width fits inside the safe zone, or the floor size when none does.
func (r *CaptionRenderer) FitFontSize(text string, style domain.StyleConfig, canvas domain.Canvas) (RenderInfo, error) {
	f, fontErr := r.fonts.Load(style.Font, style.FontPath)
	if f == nil {
		return RenderInfo{}, fontErr
	}

	size, w, h, overflow := fitFontSize(f, normalizeCaption(text), style, canvas)
	return RenderInfo{FontSize: size, Width: w, Height: h, Overflow: overflow, FontFallback: fontErr}, nil
}

func (r *CaptionRenderer) drawCaption(dst *image.RGBA, text string, style domain.StyleConfig, canvas domain.Canvas) (RenderInfo, error) {
	textColor, err := ParseColor(style.TextColor, 255)
	if err != nil {
		return RenderInfo{}, fmt.Errorf("text color: %w", err)
	}
	strokeColor, err := ParseColor(style.StrokeColor, 255)
	if err != nil {
		return RenderInfo{}, fmt.Errorf("stroke color: %w", err)
	}
	shadowColor, err := ParseColor(style.ShadowColor, 255)
	if err != nil {
		return RenderInfo{}, fmt.Errorf("shadow color: %w", err)
	}

	f, fontErr := r.fonts.Load(style.Font, style.FontPath)
	if f == nil {
		return RenderInfo{}, fontErr
	}

	text = normalizeCaption(text)
	if text == "" {
		return RenderInfo{FontSize: style.MaxFontSize, FontFallback: fontErr}, nil
	}

	size, textW, textH, overflow := fitFontSize(f, text, style, canvas)
	info := RenderInfo{FontSize: size, Width: textW, Height: textH, Overflow: overflow, FontFallback: fontErr}

	face := newFace(f, size)
	defer face.Close()

	bounds, _ := font.BoundString(face, text)
	stroke := max(0, style.StrokeWidth)

	left := (canvas.Width-textW)/2 + stroke
	top := (canvas.Height-textH)/2 + stroke
	dot := fixed.P(left-bounds.Min.X.Floor(), top-bounds.Min.Y.Floor())

	// Text region including stroke, in canvas coordinates.
	textRect := image.Rect(left-stroke, top-stroke, left-stroke+textW, top-stroke+textH)

	mask := image.NewAlpha(dst.Bounds())
	d := &font.Drawer{Dst: mask, Src: image.Opaque, Face: face, Dot: dot}
	d.DrawString(text)

	if style.ShadowAlpha > 0 {
		drawShadow(dst, mask, textRect, style, shadowColor)
	}

	textLayer := image.NewRGBA(dst.Bounds())
	if stroke > 0 {
		strokeMask := dilate(mask, textRect, stroke)
		draw.DrawMask(textLayer, textRect, image.NewUniform(strokeColor), image.Point{}, strokeMask, textRect.Min, draw.Over)
	}
	draw.DrawMask(textLayer, textRect, image.NewUniform(textColor), image.Point{}, mask, textRect.Min, draw.Over)
	draw.Draw(dst, textRect.Intersect(dst.Bounds()), textLayer, textRect.Intersect(dst.Bounds()).Min, draw.Over)

	return info, nil
}

// drawShadow paints the glyph mask shifted by the shadow offset in the shadow
// color, blurs it when a radius is set, and composites it under the text.
func drawShadow(dst *image.RGBA, mask *image.Alpha, textRect image.Rectangle, style domain.StyleConfig, c color.NRGBA) {
	pad := 0
	if style.ShadowBlur > 0 {
		pad = int(math.Ceil(3*float64(style.ShadowBlur))) + 1
	}

	offset := image.Pt(style.ShadowDX, style.ShadowDY)
	region := textRect.Add(offset).Inset(-pad).Intersect(dst.Bounds())
	if region.Empty() {
		return
	}

	shadow := image.NewNRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	alpha := uint32(clamp(style.ShadowAlpha, 0, 255))
	for y := 0; y < region.Dy(); y++ {
		for x := 0; x < region.Dx(); x++ {
			i := shadow.PixOffset(x, y)
			shadow.Pix[i+0] = c.R
			shadow.Pix[i+1] = c.G
			shadow.Pix[i+2] = c.B

			src := image.Pt(region.Min.X+x, region.Min.Y+y).Sub(offset)
			if !src.In(mask.Bounds()) {
				continue
			}
			shadow.Pix[i+3] = uint8(uint32(mask.AlphaAt(src.X, src.Y).A) * alpha / 255)
		}
	}

	var layer image.Image = shadow
	if style.ShadowBlur > 0 {
		layer = imaging.Blur(shadow, float64(style.ShadowBlur))
	}

	draw.Draw(dst, region, layer, image.Point{}, draw.Over)
}

// dilate grows the glyph mask by radius pixels with a disc kernel, limited to rect.
func dilate(mask *image.Alpha, rect image.Rectangle, radius int) *image.Alpha {
	out := image.NewAlpha(mask.Bounds())
	rect = rect.Intersect(mask.Bounds())
	r2 := radius * radius

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			var best uint8
			for dy := -radius; dy <= radius && best < 255; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					if dx*dx+dy*dy > r2 {
						continue
					}
					sx, sy := x+dx, y+dy
					if sx < rect.Min.X || sy < rect.Min.Y || sx >= rect.Max.X || sy >= rect.Max.Y {
						continue
					}
					if a := mask.Pix[mask.PixOffset(sx, sy)]; a > best {
						best = a
					}
				}
			}
			out.Pix[out.PixOffset(x, y)] = best
		}
	}

	return out
}

func fitFontSize(f *truetype.Font, text string, style domain.StyleConfig, canvas domain.Canvas) (size, width, height int, overflow bool) {
	limit := canvas.Width - 2*style.SafeMargin
	size = style.MaxFontSize
	floor := min(domain.MinFontSize, style.MaxFontSize)

	for {
		width, height = measure(f, text, size, style.StrokeWidth)
		if width <= limit || size <= floor {
			break
		}
		size = max(floor, size-domain.FontSizeStep)
	}

	return size, width, height, width > limit
}

// measure returns the bounding box of text at size, stroke included.
func measure(f *truetype.Font, text string, size, stroke int) (int, int) {
	face := newFace(f, size)
	defer face.Close()

	b, _ := font.BoundString(face, text)
	stroke = max(0, stroke)
	w := b.Max.X.Ceil() - b.Min.X.Floor() + 2*stroke
	h := b.Max.Y.Ceil() - b.Min.Y.Floor() + 2*stroke
	return w, h
}

func newFace(f *truetype.Font, size int) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func normalizeCaption(text string) string {
	return strings.TrimSpace(lineBreaks.Replace(text))
}
