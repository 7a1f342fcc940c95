package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"video-batcher/internal/broker"
	"video-batcher/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type fakeConsumer struct {
	messages  []*broker.Message
	mu        sync.Mutex
	committed []int64
	closed    bool
}

func (c *fakeConsumer) Start(ctx context.Context, out chan<- *broker.Message, _ retry.Strategy) {
	go func() {
		defer close(out)
		for _, m := range c.messages {
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *fakeConsumer) Commit(_ context.Context, msg *broker.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed = append(c.committed, msg.Offset)
	return nil
}

func (c *fakeConsumer) Close() error {
	c.closed = true
	return nil
}

type fakeRunner struct {
	mu     sync.Mutex
	seen   []string
	cancel context.CancelFunc
}

func (r *fakeRunner) Process(_ context.Context, task *domain.BatchTask) error {
	r.mu.Lock()
	r.seen = append(r.seen, task.ID)
	r.mu.Unlock()

	switch task.ID {
	case "interrupted":
		if r.cancel != nil {
			r.cancel()
		}
		return context.Canceled
	case "failed":
		return errors.New("database unreachable")
	case "boom":
		panic("encoder exploded")
	}
	return nil
}

func taskMessage(t *testing.T, offset int64, id string) *broker.Message {
	t.Helper()
	data, err := json.Marshal(domain.BatchTask{ID: id, SessionID: "s1"})
	require.NoError(t, err)
	return &broker.Message{Key: []byte(id), Value: data, Offset: offset}
}

func TestServe_CommitPolicy(t *testing.T) {
	zlog.Init()

	consumer := &fakeConsumer{messages: []*broker.Message{
		taskMessage(t, 1, "ok"),
		{Value: []byte("{not json"), Offset: 2},
		taskMessage(t, 3, "failed"),
		taskMessage(t, 4, "boom"),
		taskMessage(t, 5, ""),
		taskMessage(t, 6, "ok-2"),
	}}
	runner := &fakeRunner{}

	w := newWorker(consumer, runner, retry.Strategy{}, 2, &zlog.Logger)
	w.Serve(context.Background())

	// Nothing is left uncommitted while the worker keeps running, or the
	// next commit on the partition would silently skip it.
	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5, 6}, consumer.committed)
	assert.ElementsMatch(t, []string{"ok", "failed", "boom", "ok-2"}, runner.seen)
}

func TestServe_ShutdownLeavesBatchUncommitted(t *testing.T) {
	zlog.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := &fakeConsumer{messages: []*broker.Message{
		taskMessage(t, 1, "ok"),
		taskMessage(t, 2, "interrupted"),
		taskMessage(t, 3, "ok-2"),
	}}
	runner := &fakeRunner{cancel: cancel}

	w := newWorker(consumer, runner, retry.Strategy{}, 1, &zlog.Logger)
	w.Serve(ctx)

	assert.Contains(t, consumer.committed, int64(1))
	assert.NotContains(t, consumer.committed, int64(2))
	assert.NotContains(t, runner.seen, "ok-2")
}

func TestServe_StopsOnCancel(t *testing.T) {
	zlog.Init()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	consumer := &blockingConsumer{}
	w := newWorker(consumer, &fakeRunner{}, retry.Strategy{}, 3, &zlog.Logger)
	w.Serve(ctx)
	assert.True(t, errors.Is(ctx.Err(), context.Canceled))
}

type blockingConsumer struct{ fakeConsumer }

func (c *blockingConsumer) Start(ctx context.Context, out chan<- *broker.Message, _ retry.Strategy) {
	go func() {
		<-ctx.Done()
		close(out)
	}()
}
