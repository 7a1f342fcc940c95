package packager

import "errors"

var (
	ErrNoVideos = errors.New("no videos to package")
)
