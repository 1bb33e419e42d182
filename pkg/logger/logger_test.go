package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given an initialized global logger", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf), ShouldBeNil)
		defer func() { So(Sync(), ShouldBeNil) }()

		log := Get()
		So(log, ShouldNotBeNil)

		Convey("When logging at info level with fields", func() {
			log.Info(context.Background(), "vote recorded",
				String("celebrity", "abc"),
				Int("rating", 1016),
				Int64("matches", 3),
				Bool("won", true),
				Duration("took", 5*time.Millisecond),
			)

			Convey("Then the record contains the message, fields and caller", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, "vote recorded")
				So(out, ShouldContainSubstring, "celebrity=abc")
				So(out, ShouldContainSubstring, "rating=1016")
				So(out, ShouldContainSubstring, "won=true")
				So(out, ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When the context carries a request id", func() {
			ctx := WithRequestID(context.Background(), "req-42")
			log.Warn(ctx, "slow store", Error(errors.New("timeout")))

			Convey("Then the record includes it", func() {
				So(buf.String(), ShouldContainSubstring, "request_id=req-42")
				So(buf.String(), ShouldContainSubstring, "error=timeout")
			})
		})

		Convey("When debug is disabled", func() {
			So(SetLevelString("info"), ShouldBeNil)
			log.Debug(context.Background(), "hidden")

			Convey("Then nothing is written", func() {
				So(buf.String(), ShouldNotContainSubstring, "hidden")
			})
		})

		Convey("When using a named logger", func() {
			Named("recorder").Info(context.Background(), "hello")

			Convey("Then the component is attached", func() {
				So(buf.String(), ShouldContainSubstring, "component=recorder")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		for _, lvl := range []string{"debug", "info", "", "warn", "WARNING", " error "} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
		So(SetLevelString("info"), ShouldBeNil)
	})
}

func TestRequestIDMissing(t *testing.T) {
	Convey("Given a bare context", t, func() {
		So(RequestID(context.Background()), ShouldEqual, "")
	})
}

func TestNop(t *testing.T) {
	Convey("Given a no-op logger", t, func() {
		log := Nop().Named("quiet").With(String("k", "v"))

		Convey("Then logging is safe and silent", func() {
			So(func() {
				log.Info(context.Background(), "ignored")
				log.Error(context.Background(), "ignored", Error(errors.New("x")))
			}, ShouldNotPanic)
		})
	})
}
