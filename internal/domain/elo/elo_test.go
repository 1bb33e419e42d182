package elo_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/whovapes/internal/domain/elo"
	"github.com/okian/whovapes/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestExpectedScore(t *testing.T) {
	Convey("Given two ratings", t, func() {
		Convey("Equal ratings give an even chance", func() {
			for _, r := range []int{0, 800, 1000, 2400} {
				So(elo.ExpectedScore(r, r), ShouldEqual, 0.5)
			}
		})

		Convey("A 200 point favourite is expected to win about 76% of the time", func() {
			So(elo.ExpectedScore(1200, 1000), ShouldAlmostEqual, 0.7597, 0.0001)
			So(elo.ExpectedScore(1200, 1000)+elo.ExpectedScore(1000, 1200), ShouldAlmostEqual, 1.0, 1e-12)
		})
	})
}

func TestCalculate(t *testing.T) {
	Convey("Given the default engine", t, func() {
		e := elo.NewEngine()

		Convey("When two 1000-rated celebrities meet and A wins", func() {
			res, err := e.Calculate(elo.Input{RatingA: 1000, RatingB: 1000, Winner: model.SideA})

			Convey("Then A gains 16 and B loses 16", func() {
				So(err, ShouldBeNil)
				So(res.RatingA, ShouldEqual, 1016)
				So(res.RatingB, ShouldEqual, 984)
				So(res.K, ShouldEqual, elo.DefaultK)
			})
		})

		Convey("When the favourite wins", func() {
			res, err := e.Calculate(elo.Input{RatingA: 1200, RatingB: 1000, Winner: model.SideA, K: 32})

			Convey("Then the gain is smaller than in an even match", func() {
				So(err, ShouldBeNil)
				So(res.RatingA, ShouldEqual, 1208)
				So(res.RatingB, ShouldEqual, 992)
				So(res.DeltaA, ShouldBeLessThan, 16)
			})
		})

		Convey("When the underdog wins", func() {
			res, err := e.Calculate(elo.Input{RatingA: 1200, RatingB: 1000, Winner: model.SideB, K: 32})

			Convey("Then the swing is larger than in an even match", func() {
				So(err, ShouldBeNil)
				So(res.RatingB, ShouldEqual, 1024)
				So(res.RatingA, ShouldEqual, 1176)
				So(res.DeltaB, ShouldBeGreaterThan, 16)
			})
		})

		Convey("When the K-factor is out of range", func() {
			_, errLow := e.Calculate(elo.Input{RatingA: 1000, RatingB: 1000, Winner: model.SideA, K: -1})
			_, errHigh := e.Calculate(elo.Input{RatingA: 1000, RatingB: 1000, Winner: model.SideA, K: 65})

			Convey("Then validation fails", func() {
				So(errors.Is(errLow, model.ErrValidation), ShouldBeTrue)
				So(errors.Is(errHigh, model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When the winner is unknown", func() {
			_, errWinner := e.Calculate(elo.Input{RatingA: 1000, RatingB: 1000, Winner: "C"})

			Convey("Then validation fails", func() {
				So(errors.Is(errWinner, model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When a low rated loser drops below zero", func() {
			first, err := e.Calculate(elo.Input{RatingA: 10, RatingB: 10, Winner: model.SideA, K: 64})
			So(err, ShouldBeNil)
			So(first.RatingB, ShouldEqual, -22)

			Convey("Then the negative rating can still be rated again", func() {
				next, err := e.Calculate(elo.Input{RatingA: first.RatingA, RatingB: first.RatingB, Winner: model.SideB, K: 64})
				So(err, ShouldBeNil)
				So(next.RatingB, ShouldBeGreaterThan, first.RatingB)
				So(next.RatingA+next.RatingB, ShouldEqual, first.RatingA+first.RatingB)
			})
		})
	})

	Convey("Given an engine with a custom default K", t, func() {
		e := elo.NewEngine(elo.WithDefaultK(16), elo.WithDefaultK(100))

		Convey("Then out of range defaults are ignored", func() {
			So(e.DefaultK(), ShouldEqual, 16)
			res, err := e.Calculate(elo.Input{RatingA: 1000, RatingB: 1000, Winner: model.SideB})
			So(err, ShouldBeNil)
			So(res.RatingB, ShouldEqual, 1008)
		})
	})
}

func TestRatingProperties(t *testing.T) {
	Convey("Across a grid of ratings", t, func() {
		ratings := []int{0, 400, 800, 1000, 1200, 1600, 2000, 2800}

		Convey("The winner gains whenever it was not the favourite", func() {
			for _, ra := range ratings {
				for _, rb := range ratings {
					if ra > rb {
						continue
					}
					res, err := elo.Calculate(elo.Input{RatingA: ra, RatingB: rb, Winner: model.SideA})
					So(err, ShouldBeNil)
					So(res.RatingA, ShouldBeGreaterThan, ra)
				}
			}
		})

		Convey("The gain shrinks as the winner's lead grows", func() {
			prev := math.MaxInt
			for _, ra := range ratings {
				res, err := elo.Calculate(elo.Input{RatingA: ra, RatingB: 1000, Winner: model.SideA})
				So(err, ShouldBeNil)
				So(res.DeltaA, ShouldBeLessThanOrEqualTo, prev)
				prev = res.DeltaA
			}
		})

		Convey("Rating changes cancel out up to rounding", func() {
			for _, ra := range ratings {
				for _, rb := range ratings {
					for _, w := range []model.Side{model.SideA, model.SideB} {
						for _, k := range []int{1, 17, 32, 64} {
							res, err := elo.Calculate(elo.Input{RatingA: ra, RatingB: rb, Winner: w, K: k})
							So(err, ShouldBeNil)
							sum := res.DeltaA + res.DeltaB
							So(sum, ShouldBeBetweenOrEqual, -1, 1)
						}
					}
				}
			}
		})

		Convey("Identical inputs give identical outputs", func() {
			in := elo.Input{RatingA: 1337, RatingB: 1111, Winner: model.SideB, K: 24}
			first, _ := elo.Calculate(in)
			second, _ := elo.Calculate(in)
			So(first, ShouldResemble, second)
		})
	})
}
