package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/whovapes/internal/adapters/mq/queue"
	"github.com/okian/whovapes/internal/adapters/mq/worker"
	"github.com/okian/whovapes/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	eventChan chan queue.Event
}

func newMockQueue() *mockQueue {
	return &mockQueue{eventChan: make(chan queue.Event, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Event {
	return mq.eventChan
}

func (mq *mockQueue) Close() error {
	close(mq.eventChan)
	return nil
}

type mockAppender struct {
	mu       sync.Mutex
	appended map[string]queue.Event
	errors   map[string]error
}

func newMockAppender() *mockAppender {
	return &mockAppender{
		appended: make(map[string]queue.Event),
		errors:   make(map[string]error),
	}
}

func (ma *mockAppender) AppendSkip(ctx context.Context, e queue.Event) error {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	if err, ok := ma.errors[e.ID]; ok {
		return err
	}
	ma.appended[e.ID] = e
	return nil
}

func (ma *mockAppender) setError(id string, err error) {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.errors[id] = err
}

func (ma *mockAppender) count() int {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	return len(ma.appended)
}

func skip(id string) queue.Event {
	return queue.Event{ID: id, CelebrityA: "a", CelebrityB: "b", CreatedAt: time.Now()}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker on a mock queue", t, func() {
		q := newMockQueue()
		appender := newMockAppender()
		w := worker.NewInMemoryWorker(q, appender,
			worker.WithName("test-worker"),
			worker.WithLogger(logger.Nop()),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When events arrive", func() {
			q.eventChan <- skip("s1")
			q.eventChan <- skip("s2")

			convey.Convey("Then they are appended", func() {
				convey.So(waitFor(func() bool { return appender.count() == 2 }), convey.ShouldBeTrue)
				convey.So(w.Processed(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When appending fails", func() {
			appender.setError("bad", errors.New("disk full"))
			q.eventChan <- skip("bad")
			q.eventChan <- skip("good")

			convey.Convey("Then the failure is counted and the worker keeps going", func() {
				convey.So(waitFor(func() bool { return appender.count() == 1 }), convey.ShouldBeTrue)
				convey.So(waitFor(func() bool { return w.Failed() == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.Convey("Then it stops promptly", func() {
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker whose context is cancelled", t, func() {
		q := newMockQueue()
		w := worker.NewInMemoryWorker(q, newMockAppender())
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			w.Run(ctx)
			close(done)
		}()
		cancel()

		convey.Convey("Then Run returns", func() {
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("worker did not stop")
			}
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over the in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1000))
		appender := newMockAppender()
		pool := worker.NewPool(4, q, appender, worker.WithLogger(logger.Nop()))
		pool.Start(context.Background())

		convey.Convey("Then it has the requested size", func() {
			convey.So(pool.Size(), convey.ShouldEqual, 4)
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
		})

		convey.Convey("When many events are queued and the pool shuts down", func() {
			for i := 0; i < 200; i++ {
				convey.So(q.Enqueue(context.Background(), skip(fmt.Sprintf("s%d", i))), convey.ShouldBeTrue)
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then every queued event is drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(appender.count(), convey.ShouldEqual, 200)
				convey.So(pool.Processed(), convey.ShouldEqual, 200)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		pool := worker.NewPool(0, newMockQueue(), newMockAppender())

		convey.Convey("Then the pool scales with the CPU count", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
