package packager

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"video-batcher/internal/domain"

	"github.com/wb-go/wbf/zlog"
)

// Packager splits rendered videos into store-only zip parts.
type Packager struct {
	prefix string
	logger *zlog.Zerolog
}

func NewPackager(prefix string, logger *zlog.Zerolog) *Packager {
	return &Packager{prefix: prefix, logger: logger}
}

// PartName returns the archive name for part n (1-based).
func (p *Packager) PartName(sessionID string, n int) string {
	return fmt.Sprintf("%s_BATCH_%s_part%d.zip", p.prefix, sessionID, n)
}

// PartCount is ceil(n/chunkSize); a non-positive chunk size means one part.
func PartCount(n, chunkSize int) int {
	if n == 0 {
		return 0
	}
	if chunkSize <= 0 {
		return 1
	}
	return (n + chunkSize - 1) / chunkSize
}

// Package writes ceil(N/k) parts into dir, in video order. The source files of a
// part are removed once that part is complete.
func (p *Packager) Package(ctx context.Context, videos []domain.RenderedVideo, chunkSize int, dir, sessionID string) ([]domain.ArchivePart, error) {
	if len(videos) == 0 {
		return nil, ErrNoVideos
	}
	if chunkSize <= 0 {
		chunkSize = len(videos)
	}

	parts := make([]domain.ArchivePart, 0, PartCount(len(videos), chunkSize))
	for start, n := 0, 1; start < len(videos); start, n = start+chunkSize, n+1 {
		if err := ctx.Err(); err != nil {
			return parts, err
		}

		end := min(start+chunkSize, len(videos))
		part, err := p.writePart(videos[start:end], dir, p.PartName(sessionID, n))
		if err != nil {
			return parts, fmt.Errorf("failed to write part %d: %w", n, err)
		}
		part.Part = n
		parts = append(parts, part)

		p.logger.Debug().
			Str("archive", part.Name).
			Int("videos", len(part.Videos)).
			Int64("size", part.Size).
			Msg("archive part written")
	}

	return parts, nil
}

// writePart removes the sources only once the part is closed on disk. On any
// error the partial archive is removed and the sources are kept.
func (p *Packager) writePart(videos []domain.RenderedVideo, dir, name string) (part domain.ArchivePart, err error) {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return part, err
	}

	info, err := p.writeZip(f, videos, &part)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return domain.ArchivePart{}, err
	}

	for _, v := range videos {
		if rmErr := os.Remove(v.Path); rmErr != nil && !os.IsNotExist(rmErr) {
			p.logger.Warn().Err(rmErr).Str("path", v.Path).Msg("failed to remove packaged video")
		}
	}

	part.Name = name
	part.Path = path
	part.Size = info.Size()
	part.CreatedAt = time.Now()
	return part, nil
}

func (p *Packager) writeZip(f *os.File, videos []domain.RenderedVideo, part *domain.ArchivePart) (os.FileInfo, error) {
	zw := zip.NewWriter(f)
	for _, v := range videos {
		if err := addStored(zw, v); err != nil {
			return nil, errors.Join(err, zw.Close())
		}
		part.Videos = append(part.Videos, v.Name)
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	if err := f.Sync(); err != nil {
		return nil, err
	}
	return f.Stat()
}

func addStored(zw *zip.Writer, v domain.RenderedVideo) error {
	src, err := os.Open(v.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = v.Name
	header.Method = zip.Store

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(w, src)
	return err
}
