package batch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"video-batcher/internal/domain"
	repoBatch "video-batcher/internal/repository/batch"

	"github.com/wb-go/wbf/retry"
)

type fakeRepo struct {
	mu      sync.Mutex
	batches map[string]*domain.Batch
	videos  map[string][]domain.VideoStatus
	parts   map[string][]domain.ArchivePart
	failOn  string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		batches: make(map[string]*domain.Batch),
		videos:  make(map[string][]domain.VideoStatus),
		parts:   make(map[string][]domain.ArchivePart),
	}
}

func (r *fakeRepo) Create(_ context.Context, b *domain.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "create" {
		return errors.New("db down")
	}
	cp := *b
	r.batches[b.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok || b.Status == domain.BatchDeleted {
		return nil, repoBatch.ErrBatchNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeRepo) get(id string) domain.Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.batches[id]
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id string, status domain.BatchStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok || b.Status == domain.BatchDeleted {
		return repoBatch.ErrBatchNotFound
	}
	b.Status = status
	b.Error = errMsg
	return nil
}

func (r *fakeRepo) StartProcessing(_ context.Context, id string, planned int, seed uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "start" {
		return errors.New("db down")
	}
	b, ok := r.batches[id]
	if !ok || b.Status == domain.BatchDeleted {
		return repoBatch.ErrBatchNotFound
	}
	b.Status = domain.BatchProcessing
	b.Planned = planned
	b.Seed = seed
	return nil
}

func (r *fakeRepo) UpdateProgress(_ context.Context, id string, rendered, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok || b.Status == domain.BatchDeleted {
		return repoBatch.ErrBatchNotFound
	}
	b.Rendered = rendered
	b.Failed = failed
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok || b.Status == domain.BatchDeleted {
		return repoBatch.ErrBatchNotFound
	}
	b.Status = domain.BatchDeleted
	return nil
}

func (r *fakeRepo) SaveVideoStatus(_ context.Context, v *domain.VideoStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[v.BatchID] = append(r.videos[v.BatchID], *v)
	return nil
}

func (r *fakeRepo) ListVideoStatuses(_ context.Context, batchID string) ([]domain.VideoStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.VideoStatus(nil), r.videos[batchID]...), nil
}

func (r *fakeRepo) SaveArchivePart(_ context.Context, p *domain.ArchivePart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.batches[p.BatchID]; !ok || b.Status == domain.BatchDeleted {
		return repoBatch.ErrBatchNotFound
	}
	r.parts[p.BatchID] = append(r.parts[p.BatchID], *p)
	return nil
}

func (r *fakeRepo) ListArchiveParts(_ context.Context, batchID string) ([]domain.ArchivePart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ArchivePart(nil), r.parts[batchID]...), nil
}

func (r *fakeRepo) GetArchivePart(_ context.Context, batchID string, part int) (*domain.ArchivePart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.parts[batchID] {
		if p.Part == part {
			cp := p
			return &cp, nil
		}
	}
	return nil, repoBatch.ErrArchiveNotFound
}

func (r *fakeRepo) DeleteArchiveParts(_ context.Context, batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.parts, batchID)
	return nil
}

type fakeFiles struct {
	mu        sync.Mutex
	objects   map[string][]byte
	failPutAt int
	puts      int
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{objects: make(map[string][]byte), failPutAt: -1}
}

func (f *fakeFiles) Put(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.puts == f.failPutAt {
		return errors.New("bucket on fire")
	}
	f.puts++
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeFiles) PutFile(ctx context.Context, key, path, contentType string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if err := f.Put(ctx, key, data, contentType); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (f *fakeFiles) ReadAll(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, repoBatch.ErrFileNotFound
	}
	return data, nil
}

func (f *fakeFiles) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	data, err := f.ReadAll(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (f *fakeFiles) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeFiles) DeletePrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			delete(f.objects, key)
		}
	}
	return nil
}

func (f *fakeFiles) keys(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

type sentMessage struct {
	key   []byte
	value []byte
}

type fakeProducer struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (p *fakeProducer) Send(_ context.Context, _ retry.Strategy, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentMessage{key: key, value: value})
	return nil
}
