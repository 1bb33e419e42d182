package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/whovapes/internal/app"
	"github.com/okian/whovapes/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeSource struct {
	mu    sync.Mutex
	calls atomic.Int64
	list  []model.Celebrity
	err   error
	delay time.Duration
}

func (f *fakeSource) AllCelebrities(ctx context.Context) ([]model.Celebrity, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Celebrity(nil), f.list...), nil
}

func (f *fakeSource) set(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = f.list[:0]
	for i := 0; i < n; i++ {
		f.list = append(f.list, model.Celebrity{ID: fmt.Sprintf("c%d", i), Name: fmt.Sprintf("celeb %d", i), Rating: 1000})
	}
}

// scripted returns the queued indices in order.
func scripted(values ...int) func(int) int {
	var mu sync.Mutex
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		v := values[0]
		values = values[1:]
		return v % n
	}
}

func TestPairSelector(t *testing.T) {
	Convey("Given a population of three", t, func() {
		src := &fakeSource{}
		src.set(3)
		now := time.Unix(1_700_000_000, 0)
		var clockMu sync.Mutex
		clock := func() time.Time { clockMu.Lock(); defer clockMu.Unlock(); return now }
		advance := func(d time.Duration) { clockMu.Lock(); now = now.Add(d); clockMu.Unlock() }
		ctx := context.Background()

		Convey("When the second draw repeats the first", func() {
			sel := service.NewPairSelector(src, service.WithRandom(scripted(1, 1, 1, 2)), service.WithSelectorClock(clock))
			pair, err := sel.RandomPair(ctx)

			Convey("Then it is resampled until distinct", func() {
				So(err, ShouldBeNil)
				So(pair.A.ID, ShouldEqual, "c1")
				So(pair.B.ID, ShouldEqual, "c2")
			})
		})

		Convey("When drawing many pairs with real randomness", func() {
			sel := service.NewPairSelector(src)
			seen := map[string]bool{}
			for i := 0; i < 300; i++ {
				p, err := sel.RandomPair(ctx)
				So(err, ShouldBeNil)
				So(p.A.ID, ShouldNotEqual, p.B.ID)
				seen[p.A.ID+"-"+p.B.ID] = true
			}

			Convey("Then every ordered pair shows up and the store is scanned once", func() {
				So(len(seen), ShouldEqual, 6)
				So(src.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the snapshot is older than the TTL", func() {
			sel := service.NewPairSelector(src, service.WithSnapshotTTL(time.Minute), service.WithSelectorClock(clock))
			_, _ = sel.RandomPair(ctx)
			advance(30 * time.Second)
			_, _ = sel.RandomPair(ctx)
			So(src.calls.Load(), ShouldEqual, 1)
			So(sel.Age(), ShouldEqual, 30*time.Second)

			advance(31 * time.Second)
			_, _ = sel.RandomPair(ctx)

			Convey("Then it is refreshed", func() {
				So(src.calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When the snapshot is invalidated", func() {
			sel := service.NewPairSelector(src, service.WithSelectorClock(clock))
			snap, _ := sel.Snapshot(ctx)
			So(len(snap), ShouldEqual, 3)
			src.set(5)
			sel.Invalidate()
			snap, _ = sel.Snapshot(ctx)

			Convey("Then new celebrities are visible at once", func() {
				So(len(snap), ShouldEqual, 5)
				So(src.calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When many callers need a refresh at once", func() {
			src.delay = 50 * time.Millisecond
			sel := service.NewPairSelector(src)
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = sel.RandomPair(ctx)
				}()
			}
			wg.Wait()

			Convey("Then they share one scan", func() {
				So(src.calls.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given fewer than two celebrities", t, func() {
		src := &fakeSource{}
		src.set(1)
		sel := service.NewPairSelector(src)

		Convey("Then no pair can be drawn", func() {
			_, err := sel.RandomPair(context.Background())
			So(errors.Is(err, model.ErrInsufficientData), ShouldBeTrue)
		})
	})

	Convey("Given a failing store", t, func() {
		boom := errors.New("boom")
		sel := service.NewPairSelector(&fakeSource{err: boom})

		Convey("Then the error reaches the caller", func() {
			_, err := sel.RandomPair(context.Background())
			So(errors.Is(err, boom), ShouldBeTrue)
		})
	})
}

func TestPairSelectorSharedRefresh(t *testing.T) {
	Convey("Given a slow store and two callers sharing one refresh", t, func() {
		src := &fakeSource{delay: 100 * time.Millisecond}
		src.set(3)
		sel := service.NewPairSelector(src)

		leaderCtx, cancelLeader := context.WithCancel(context.Background())
		leaderErr := make(chan error, 1)
		go func() {
			_, err := sel.Snapshot(leaderCtx)
			leaderErr <- err
		}()
		time.Sleep(10 * time.Millisecond)

		type result struct {
			snap []model.Celebrity
			err  error
		}
		follower := make(chan result, 1)
		go func() {
			snap, err := sel.Snapshot(context.Background())
			follower <- result{snap, err}
		}()
		time.Sleep(10 * time.Millisecond)

		Convey("When the caller that started the refresh goes away", func() {
			cancelLeader()

			Convey("Then it returns at once and the other caller still gets the snapshot", func() {
				So(errors.Is(<-leaderErr, context.Canceled), ShouldBeTrue)
				got := <-follower
				So(got.err, ShouldBeNil)
				So(got.snap, ShouldHaveLength, 3)
				So(src.calls.Load(), ShouldEqual, 1)
			})
		})
	})
}
