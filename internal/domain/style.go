package domain

type FontFamily string

const (
	FontRegular    FontFamily = "regular"
	FontBold       FontFamily = "bold"
	FontItalic     FontFamily = "italic"
	FontBoldItalic FontFamily = "bold_italic"
	FontMedium     FontFamily = "medium"
	FontMono       FontFamily = "mono"
)

const (
	MinFontSize  = 15
	FontSizeStep = 4
)

// StyleConfig describes how a caption is drawn. Colors are "#RRGGBB" hex strings.
type StyleConfig struct {
	Font        FontFamily `json:"font" validate:"omitempty,oneof=regular bold italic bold_italic medium mono"`
	FontPath    string     `json:"font_path,omitempty"`
	MaxFontSize int        `json:"max_font_size" validate:"min=15,max=400"`
	TextColor   string     `json:"text_color" validate:"hexcolor"`
	StrokeWidth int        `json:"stroke_width" validate:"min=0,max=40"`
	StrokeColor string     `json:"stroke_color" validate:"hexcolor"`
	ShadowDX    int        `json:"shadow_dx" validate:"min=-200,max=200"`
	ShadowDY    int        `json:"shadow_dy" validate:"min=-200,max=200"`
	ShadowBlur  int        `json:"shadow_blur" validate:"min=0,max=100"`
	ShadowAlpha int        `json:"shadow_alpha" validate:"min=0,max=255"`
	ShadowColor string     `json:"shadow_color" validate:"hexcolor"`
	SafeMargin  int        `json:"safe_margin" validate:"min=0"`
}

func DefaultStyle() StyleConfig {
	return StyleConfig{
		Font:        FontBold,
		MaxFontSize: 85,
		TextColor:   "#FFFFFF",
		StrokeWidth: 3,
		StrokeColor: "#000000",
		ShadowDX:    5,
		ShadowDY:    5,
		ShadowBlur:  5,
		ShadowAlpha: 160,
		ShadowColor: "#000000",
		SafeMargin:  60,
	}
}

type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func DefaultCanvas() Canvas {
	return Canvas{Width: DefaultCanvasWidth, Height: DefaultCanvasHeight}
}
