package operations

import (
	"strings"
	"testing"

	"video-batcher/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStyle() domain.StyleConfig {
	s := domain.DefaultStyle()
	s.SafeMargin = 40
	return s
}

func TestFitFontSizeIsLargestSteppedSizeThatFits(t *testing.T) {
	r := NewCaptionRenderer(nil)
	canvas := domain.DefaultCanvas()
	style := testStyle()
	limit := canvas.Width - 2*style.SafeMargin

	f, err := r.fonts.Load(style.Font, "")
	require.NoError(t, err)

	captions := []string{
		"HI",
		"BRAND NEW DROP",
		"LIMITED EDITION AVAILABLE NOW",
		"A MUCH LONGER CAPTION THAT NEEDS TO SHRINK QUITE A BIT",
	}

	for _, text := range captions {
		info, err := r.FitFontSize(text, style, canvas)
		require.NoError(t, err)

		assert.LessOrEqual(t, info.FontSize, style.MaxFontSize, text)
		assert.GreaterOrEqual(t, info.FontSize, domain.MinFontSize, text)

		expected := domain.MinFontSize
		for size := style.MaxFontSize; size >= domain.MinFontSize; size -= domain.FontSizeStep {
			if w, _ := measure(f, text, size, style.StrokeWidth); w <= limit {
				expected = size
				break
			}
		}
		assert.Equal(t, expected, info.FontSize, text)
		assert.False(t, info.Overflow, text)
		assert.LessOrEqual(t, info.Width, limit, text)
	}
}

func TestFitFontSizeOverflowsAtFloor(t *testing.T) {
	r := NewCaptionRenderer(nil)
	canvas := domain.Canvas{Width: 200, Height: 400}
	style := testStyle()
	style.SafeMargin = 20

	info, err := r.FitFontSize(strings.Repeat("WIDE ", 40), style, canvas)
	require.NoError(t, err)
	assert.Equal(t, domain.MinFontSize, info.FontSize)
	assert.True(t, info.Overflow)
	assert.Greater(t, info.Width, canvas.Width-2*style.SafeMargin)
}

func TestRenderProducesTransparentCenteredLayer(t *testing.T) {
	r := NewCaptionRenderer(nil)
	canvas := domain.Canvas{Width: 540, Height: 960}
	style := testStyle()

	layer, info, err := r.Render("DROP", style, canvas)
	require.NoError(t, err)
	assert.Equal(t, canvas.Width, layer.Bounds().Dx())
	assert.Equal(t, canvas.Height, layer.Bounds().Dy())
	assert.Equal(t, style.MaxFontSize, info.FontSize)

	assert.Equal(t, uint8(0), layer.RGBAAt(0, 0).A)
	assert.Equal(t, uint8(0), layer.RGBAAt(canvas.Width-1, canvas.Height-1).A)

	// Ink is found on the center row and roughly symmetric around the center.
	minX, maxX := canvas.Width, -1
	for x := 0; x < canvas.Width; x++ {
		for y := canvas.Height/2 - info.Height/2; y < canvas.Height/2+info.Height/2; y++ {
			if layer.RGBAAt(x, y).A > 0 {
				minX = min(minX, x)
				maxX = max(maxX, x)
			}
		}
	}
	require.GreaterOrEqual(t, maxX, 0)
	left := minX
	right := canvas.Width - 1 - maxX
	assert.InDelta(t, left, right, float64(style.ShadowDX+style.ShadowBlur*3+4))
}

func TestRenderShadowOffsetVisible(t *testing.T) {
	r := NewCaptionRenderer(nil)
	canvas := domain.Canvas{Width: 400, Height: 300}
	style := testStyle()
	style.StrokeWidth = 0
	style.ShadowBlur = 0
	style.ShadowAlpha = 255
	style.ShadowColor = "#FF0000"
	style.TextColor = "#0000FF"
	style.ShadowDX = 30
	style.ShadowDY = 30
	style.MaxFontSize = 40

	layer, _, err := r.Render("I", style, canvas)
	require.NoError(t, err)

	var sawShadow, sawText bool
	for y := 0; y < canvas.Height; y++ {
		for x := 0; x < canvas.Width; x++ {
			c := layer.RGBAAt(x, y)
			if c.A == 255 && c.R == 255 && c.B == 0 {
				sawShadow = true
			}
			if c.A == 255 && c.B == 255 && c.R == 0 {
				sawText = true
			}
		}
	}
	assert.True(t, sawShadow)
	assert.True(t, sawText)
}

func TestRenderStrokeSurroundsFill(t *testing.T) {
	r := NewCaptionRenderer(nil)
	canvas := domain.Canvas{Width: 400, Height: 300}
	style := testStyle()
	style.ShadowAlpha = 0
	style.StrokeWidth = 4
	style.StrokeColor = "#00FF00"
	style.TextColor = "#FFFFFF"

	layer, _, err := r.Render("O", style, canvas)
	require.NoError(t, err)

	var sawStroke, sawFill bool
	for y := 0; y < canvas.Height; y++ {
		for x := 0; x < canvas.Width; x++ {
			c := layer.RGBAAt(x, y)
			if c.A == 255 && c.G == 255 && c.R == 0 {
				sawStroke = true
			}
			if c.A == 255 && c.R == 255 && c.G == 255 && c.B == 255 {
				sawFill = true
			}
		}
	}
	assert.True(t, sawStroke)
	assert.True(t, sawFill)
}

func TestRenderCollapsesLineBreaks(t *testing.T) {
	r := NewCaptionRenderer(nil)
	canvas := domain.DefaultCanvas()
	style := testStyle()

	a, err := r.FitFontSize("NEW\nDROP", style, canvas)
	require.NoError(t, err)
	b, err := r.FitFontSize("NEW DROP", style, canvas)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestRenderFontFallback(t *testing.T) {
	r := NewCaptionRenderer(nil)
	style := testStyle()
	style.FontPath = "/nonexistent/font.ttf"

	layer, info, err := r.Render("FALLBACK", style, domain.Canvas{Width: 300, Height: 300})
	require.NoError(t, err)
	require.NotNil(t, layer)
	assert.ErrorIs(t, info.FontFallback, ErrFontLoad)
}

func TestRenderRejectsBadColor(t *testing.T) {
	r := NewCaptionRenderer(nil)
	style := testStyle()
	style.TextColor = "not-a-color"

	_, _, err := r.Render("X", style, domain.Canvas{Width: 100, Height: 100})
	assert.ErrorIs(t, err, ErrInvalidColor)
}

func TestPreviewIsOpaque(t *testing.T) {
	r := NewCaptionRenderer(nil)
	canvas := domain.Canvas{Width: 300, Height: 500}

	img, _, err := r.Preview("PREVIEW", testStyle(), canvas, "#336699")
	require.NoError(t, err)

	corner := img.RGBAAt(0, 0)
	assert.Equal(t, uint8(255), corner.A)
	assert.Equal(t, uint8(0x33), corner.R)
	assert.Equal(t, uint8(0x66), corner.G)
	assert.Equal(t, uint8(0x99), corner.B)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    [3]uint8
		wantErr bool
	}{
		{in: "#FFFFFF", want: [3]uint8{255, 255, 255}},
		{in: "#000", want: [3]uint8{0, 0, 0}},
		{in: "#1a2B3c", want: [3]uint8{0x1a, 0x2b, 0x3c}},
		{in: "255, 128, 0", want: [3]uint8{255, 128, 0}},
		{in: "300,0,0", want: [3]uint8{255, 0, 0}},
		{in: "#12345", wantErr: true},
		{in: "", wantErr: true},
		{in: "#GGGGGG", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseColor(tt.in, 160)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidColor)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, [3]uint8{c.R, c.G, c.B})
			assert.Equal(t, uint8(160), c.A)
		})
	}
}
