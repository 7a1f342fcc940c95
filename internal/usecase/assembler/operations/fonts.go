package operations

import (
	"fmt"
	"os"
	"sync"

	"video-batcher/internal/domain"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

var embeddedFonts = map[domain.FontFamily][]byte{
	domain.FontRegular:    goregular.TTF,
	domain.FontBold:       gobold.TTF,
	domain.FontItalic:     goitalic.TTF,
	domain.FontBoldItalic: gobolditalic.TTF,
	domain.FontMedium:     gomedium.TTF,
	domain.FontMono:       gomono.TTF,
}

// FontLoader parses and caches fonts. Safe for concurrent use.
type FontLoader struct {
	mu    sync.Mutex
	cache map[string]*truetype.Font
}

func NewFontLoader() *FontLoader {
	return &FontLoader{cache: make(map[string]*truetype.Font)}
}

// Load resolves a font from an optional file path, then the family enum. Any
// failure falls back to the regular embedded font; the returned error reports
// what went wrong but the font is always usable.
func (l *FontLoader) Load(family domain.FontFamily, path string) (*truetype.Font, error) {
	var loadErr error

	if path != "" {
		f, err := l.loadFile(path)
		if err == nil {
			return f, nil
		}
		loadErr = err
	}

	if family == "" {
		family = domain.FontBold
	}

	data, ok := embeddedFonts[family]
	if !ok {
		loadErr = fmt.Errorf("%w: unknown family %q", ErrFontLoad, family)
		family = domain.FontRegular
		data = embeddedFonts[family]
	}

	f, err := l.parse("embedded:"+string(family), func() ([]byte, error) { return data, nil })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontLoad, err)
	}

	return f, loadErr
}

func (l *FontLoader) loadFile(path string) (*truetype.Font, error) {
	f, err := l.parse("file:"+path, func() ([]byte, error) { return os.ReadFile(path) })
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFontLoad, path, err)
	}
	return f, nil
}

func (l *FontLoader) parse(key string, read func() ([]byte, error)) (*truetype.Font, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if f, ok := l.cache[key]; ok {
		return f, nil
	}

	data, err := read()
	if err != nil {
		return nil, err
	}

	f, err := truetype.Parse(data)
	if err != nil {
		return nil, err
	}

	l.cache[key] = f
	return f, nil
}
