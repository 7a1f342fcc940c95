package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"video-batcher/internal/config"
	"video-batcher/internal/repository/batch"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// FileRepository keeps uploaded session media and finished archive parts in a
// single bucket.
type FileRepository struct {
	client  *minio.Client
	bucket  string
	retries retry.Strategy
	logger  *zlog.Zerolog
}

func NewMinIORepository(cfg *config.Config, retries retry.Strategy, logger *zlog.Zerolog) (*FileRepository, error) {
	client, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	repo := &FileRepository{
		client:  client,
		bucket:  cfg.Minio.Bucket,
		retries: retries,
		logger:  logger,
	}

	ctx := context.Background()
	if err := repo.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *FileRepository) ensureBucket(ctx context.Context) error {
	return retry.Do(func() error {
		exists, err := r.client.BucketExists(ctx, r.bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket %s: %w", r.bucket, err)
		}
		if exists {
			return nil
		}
		if err := r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", r.bucket, err)
		}
		r.logger.Info().Str("bucket", r.bucket).Msg("Bucket created")
		return nil
	}, r.retries)
}

func (r *FileRepository) Put(ctx context.Context, key string, data []byte, contentType string) error {
	err := retry.Do(func() error {
		_, err := r.client.PutObject(ctx, r.bucket, key, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType})
		return err
	}, r.retries)
	if err != nil {
		return fmt.Errorf("%w: failed to put %s: %v", batch.ErrStorageError, key, err)
	}

	return nil
}

// PutFile uploads a local file and returns its stored size.
func (r *FileRepository) PutFile(ctx context.Context, key, path, contentType string) (int64, error) {
	var size int64
	err := retry.Do(func() error {
		info, err := r.client.FPutObject(ctx, r.bucket, key, path, minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			return err
		}
		size = info.Size
		return nil
	}, r.retries)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to upload %s: %v", batch.ErrStorageError, key, err)
	}

	return size, nil
}

func (r *FileRepository) ReadAll(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := retry.Do(func() error {
		obj, err := r.client.GetObject(ctx, r.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		defer obj.Close()

		data, err = io.ReadAll(obj)
		if isNotFound(err) {
			return nil
		}
		return err
	}, r.retries)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", batch.ErrStorageError, key, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", batch.ErrFileNotFound, key)
	}

	return data, nil
}

// Open returns a streaming reader over key together with its size.
func (r *FileRepository) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	obj, err := r.client.GetObject(ctx, r.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to open %s: %v", batch.ErrStorageError, key, err)
	}

	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, 0, fmt.Errorf("%w: %s", batch.ErrFileNotFound, key)
		}
		return nil, 0, fmt.Errorf("%w: failed to stat %s: %v", batch.ErrStorageError, key, err)
	}

	return obj, info.Size, nil
}

func (r *FileRepository) Delete(ctx context.Context, key string) error {
	err := retry.Do(func() error {
		return r.client.RemoveObject(ctx, r.bucket, key, minio.RemoveObjectOptions{})
	}, r.retries)
	if err != nil {
		return fmt.Errorf("%w: failed to delete %s: %v", batch.ErrStorageError, key, err)
	}

	return nil
}

func (r *FileRepository) DeletePrefix(ctx context.Context, prefix string) error {
	objects := r.client.ListObjects(ctx, r.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})

	var errs []error
	for rerr := range r.client.RemoveObjects(ctx, r.bucket, objects, minio.RemoveObjectsOptions{}) {
		errs = append(errs, fmt.Errorf("%s: %w", rerr.ObjectName, rerr.Err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: failed to delete prefix %s: %v", batch.ErrStorageError, prefix, errors.Join(errs...))
	}

	r.logger.Debug().Str("prefix", prefix).Msg("Objects removed")
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
