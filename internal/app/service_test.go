package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/whovapes/internal/adapters/mq/queue"
	"github.com/okian/whovapes/internal/adapters/wikipedia"
	service "github.com/okian/whovapes/internal/app"
	"github.com/okian/whovapes/internal/domain/model"
	"github.com/okian/whovapes/internal/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

const secret = "s3cret"

type fakeEnricher struct {
	summaries map[string]wikipedia.Summary
}

func (f *fakeEnricher) Summary(ctx context.Context, key string) (wikipedia.Summary, error) {
	s, ok := f.summaries[key]
	if !ok {
		return wikipedia.Summary{}, model.Upstream("wikipedia summary", errors.New("offline"))
	}
	return s, nil
}

func (f *fakeEnricher) EnrichAll(ctx context.Context, keys []string) map[string]wikipedia.Summary {
	out := make(map[string]wikipedia.Summary, len(keys))
	for _, k := range keys {
		out[k] = f.summaries[k]
	}
	return out
}

func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestServiceRankingsAndProfiles(t *testing.T) {
	Convey("Given a service over a seeded store", t, func() {
		ctx := context.Background()
		store := testutil.OpenTestStore(t)
		low := testutil.SeedCelebrities(t, store, 900, "Zed")[0]
		tieB := testutil.SeedCelebrities(t, store, 1100, "Bea")[0]
		tieA := testutil.SeedCelebrities(t, store, 1100, "Abe")[0]
		enricher := &fakeEnricher{summaries: map[string]wikipedia.Summary{
			"Abe": {Title: "Abe", Extract: "An actor."},
		}}
		svc := service.New(store, service.WithEnricher(enricher), service.WithAdminSecret(secret))

		Convey("When listing everyone", func() {
			all, err := svc.GetAllCelebrities(ctx)

			Convey("Then they are ordered by rating, then name", func() {
				So(err, ShouldBeNil)
				So(len(all), ShouldEqual, 3)
				So(all[0].ID, ShouldEqual, tieA.ID)
				So(all[1].ID, ShouldEqual, tieB.ID)
				So(all[2].ID, ShouldEqual, low.ID)
			})
		})

		Convey("When reading enriched rankings", func() {
			ranked, err := svc.Rankings(ctx, true)

			Convey("Then rows carry rank, likelihood and available summaries", func() {
				So(err, ShouldBeNil)
				So(ranked[0].Rank, ShouldEqual, 1)
				So(ranked[2].Rank, ShouldEqual, 3)
				So(ranked[0].Wiki, ShouldNotBeNil)
				So(ranked[0].Wiki.Extract, ShouldEqual, "An actor.")
				So(ranked[1].Wiki, ShouldBeNil)
				So(ranked[0].Likelihood.IsLikelyVaper, ShouldBeFalse)
			})
		})

		Convey("When reading a profile", func() {
			p, err := svc.GetCelebrity(ctx, tieA.ID)

			Convey("Then it carries stats and the summary", func() {
				So(err, ShouldBeNil)
				So(p.Name, ShouldEqual, "Abe")
				So(p.Skips, ShouldEqual, 0)
				So(p.Wiki, ShouldNotBeNil)
			})
		})

		Convey("When the summary cannot be fetched", func() {
			p, err := svc.GetCelebrity(ctx, low.ID)

			Convey("Then the profile degrades without it", func() {
				So(err, ShouldBeNil)
				So(p.Wiki, ShouldBeNil)
			})
		})

		Convey("When reading an unknown profile", func() {
			_, err := svc.GetCelebrity(ctx, "ghost")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the community votes ten times, six yes", func() {
			var res service.ConfirmResult
			var err error
			for i := 0; i < 10; i++ {
				res, err = svc.CastConfirmVote(ctx, low.ID, i < 6, "voter-"+string(rune('a'+i)))
				So(err, ShouldBeNil)
			}

			Convey("Then the celebrity becomes a likely vaper", func() {
				So(res.Celebrity.YesVotes, ShouldEqual, 6)
				So(res.Likelihood.Percentage, ShouldAlmostEqual, 60.0, 0.001)
				So(res.Likelihood.IsLikelyVaper, ShouldBeTrue)
			})

			Convey("And an admin reset clears it", func() {
				c, err := svc.ResetVotes(ctx, low.ID, secret)
				So(err, ShouldBeNil)
				So(c.YesVotes+c.NoVotes, ShouldEqual, 0)
			})
		})

		Convey("When one client votes on a profile too often", func() {
			var err error
			for i := 0; i < 11 && err == nil; i++ {
				_, err = svc.CastConfirmVote(ctx, low.ID, true, "spammer")
			}

			Convey("Then it is rate limited", func() {
				So(errors.Is(err, model.ErrRateLimited), ShouldBeTrue)
			})
		})
	})
}

func TestServiceAdmin(t *testing.T) {
	Convey("Given a service with an admin secret", t, func() {
		ctx := context.Background()
		store := testutil.OpenTestStore(t)
		svc := service.New(store, service.WithAdminSecret(secret))
		seeded := testutil.SeedCelebrities(t, store, 1000, "one")

		Convey("When the secret is wrong", func() {
			_, errCreate := svc.CreateCelebrity(ctx, "nope", "New", "")
			_, errFlag := svc.SetConfirmedFlag(ctx, seeded[0].ID, nil, "")
			_, errReset := svc.ResetVotes(ctx, seeded[0].ID, "s3cre")

			Convey("Then every admin operation is unauthorized", func() {
				So(errors.Is(errCreate, model.ErrUnauthorized), ShouldBeTrue)
				So(errors.Is(errFlag, model.ErrUnauthorized), ShouldBeTrue)
				So(errors.Is(errReset, model.ErrUnauthorized), ShouldBeTrue)
			})
		})

		Convey("When only one celebrity exists", func() {
			_, err := svc.RandomPair(ctx)
			So(errors.Is(err, model.ErrInsufficientData), ShouldBeTrue)

			Convey("And an admin creates another", func() {
				c, err := svc.CreateCelebrity(ctx, secret, "Two", "Two Page")
				So(err, ShouldBeNil)
				So(c.Rating, ShouldEqual, model.DefaultRating)
				So(c.WikiKey, ShouldEqual, "Two_Page")

				Convey("Then it is selectable at once", func() {
					pair, err := svc.RandomPair(ctx)
					So(err, ShouldBeNil)
					So([]string{pair.A.ID, pair.B.ID}, ShouldContain, c.ID)
				})
			})
		})

		Convey("When the flag is set", func() {
			yes := true
			c, err := svc.SetConfirmedFlag(ctx, seeded[0].ID, &yes, secret)

			Convey("Then the celebrity carries it", func() {
				So(err, ShouldBeNil)
				So(*c.Confirmed, ShouldBeTrue)
			})
		})

		Convey("When creating with an empty name", func() {
			_, err := svc.CreateCelebrity(ctx, secret, " ", "")
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})

	Convey("Given a service without an admin secret", t, func() {
		svc := service.New(testutil.OpenTestStore(t))

		Convey("Then admin operations are disabled", func() {
			So(errors.Is(svc.Authorize(""), model.ErrUnauthorized), ShouldBeTrue)
		})
	})
}

func TestServiceSkipsAndMatches(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		store := testutil.OpenTestStore(t)
		seeded := testutil.SeedCelebrities(t, store, 1000, "a", "b", "c")
		svc := service.New(store, service.WithWorkerCount(2), service.WithMaxRecentMatches(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When skips are recorded", func() {
			_, err1 := svc.RecordSkip(ctx, seeded[0].ID, seeded[1].ID)
			_, err2 := svc.RecordSkip(ctx, seeded[0].ID, seeded[2].ID)

			Convey("Then workers persist them", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(waitUntil(func() bool {
					n, _ := store.CountSkips(ctx, seeded[0].ID)
					return n == 2
				}), ShouldBeTrue)
			})
		})

		Convey("When a skip names the same celebrity twice", func() {
			_, err := svc.RecordSkip(ctx, seeded[0].ID, seeded[0].ID)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("When several votes are recorded", func() {
			for i := 0; i < 3; i++ {
				_, err := svc.RecordVote(ctx, service.VoteRequest{
					CelebrityA: seeded[0].ID, CelebrityB: seeded[1].ID, Winner: model.SideA,
				})
				So(err, ShouldBeNil)
			}

			Convey("Then recent matches are capped and named", func() {
				recent, err := svc.RecentMatches(ctx, 50)
				So(err, ShouldBeNil)
				So(len(recent), ShouldEqual, 2)
				So(recent[0].NameA, ShouldEqual, "a")
				So(recent[0].NameB, ShouldEqual, "b")
			})

			Convey("Then stats summarise the population", func() {
				st, err := svc.GetStats(ctx)
				So(err, ShouldBeNil)
				So(st.Started, ShouldBeTrue)
				So(st.WorkerCount, ShouldEqual, 2)
				So(st.Population.Celebrities, ShouldEqual, 3)
				So(st.Population.Matches, ShouldEqual, 3)
			})

			Convey("Then the workload matches the stats", func() {
				queued, workers := svc.Workload(ctx)
				So(workers, ShouldEqual, 2)
				So(queued, ShouldBeGreaterThanOrEqualTo, 0)
			})
		})
	})

	Convey("Given a service that was never started", t, func() {
		store := testutil.OpenTestStore(t)
		seeded := testutil.SeedCelebrities(t, store, 1000, "a", "b")
		svc := service.New(store)

		Convey("Then skips are refused", func() {
			_, err := svc.RecordSkip(context.Background(), seeded[0].ID, seeded[1].ID)
			So(errors.Is(err, queue.ErrClosed), ShouldBeTrue)
		})
	})
}
