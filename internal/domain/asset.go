package domain

import "time"

type AssetKind string

const (
	KindCover AssetKind = "covers"
	KindPhoto AssetKind = "photos"
	KindMusic AssetKind = "music"
)

func (k AssetKind) Valid() bool {
	switch k {
	case KindCover, KindPhoto, KindMusic:
		return true
	}
	return false
}

// MediaAsset is an uploaded image or audio blob. Data is only loaded inside the
// worker for the life of one batch; elsewhere the asset is addressed by Key.
type MediaAsset struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        AssetKind `json:"kind"`
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
	Data        []byte    `json:"-"`
}

// AssetRef points into one of the batch pools by index.
type AssetRef struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Name  string `json:"name"`
}

func RefOf(index int, a MediaAsset) AssetRef {
	return AssetRef{Index: index, ID: a.ID, Name: a.Name}
}

type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatPNG  ImageFormat = "png"
	FormatGIF  ImageFormat = "gif"
	FormatWebP ImageFormat = "webp"
	FormatBMP  ImageFormat = "bmp"
	FormatTIFF ImageFormat = "tiff"
)

const (
	PathPrefixSessions = "sessions/"
	PathPrefixBatches  = "batches/"
)

const (
	DefaultMaxUploadSize = 256 << 20
	DefaultCanvasWidth   = 1080
	DefaultCanvasHeight  = 1920
)
