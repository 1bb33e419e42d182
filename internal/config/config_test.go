package config_test

import (
	"net/netip"
	"runtime"
	"testing"
	"time"

	"github.com/okian/whovapes/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DBDriver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.DefaultKFactor, convey.ShouldEqual, 32)
			convey.So(cfg.VoteLimit, convey.ShouldEqual, 30)
			convey.So(cfg.SkipWorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the duration accessors convert units", func() {
			convey.So(cfg.SnapshotTTL(), convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.VoteWindow(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.ConfirmVoteWindow(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.WikipediaTimeout(), convey.ShouldEqual, 3*time.Second)
			convey.So(cfg.WikipediaCacheTTL(), convey.ShouldEqual, time.Hour)
		})

		convey.Convey("Then origins split on commas", func() {
			convey.So(cfg.Origins(), convey.ShouldBeEmpty)
			cfg.CORSOrigins = "https://a.example, ,https://b.example"
			convey.So(cfg.Origins(), convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
		})

		convey.Convey("Then trusted proxies parse as ranges", func() {
			none, err := cfg.TrustedProxyPrefixes()
			convey.So(err, convey.ShouldBeNil)
			convey.So(none, convey.ShouldBeEmpty)

			cfg.TrustedProxies = "10.0.0.0/8, 127.0.0.1, ,::1, 192.168.1.7/24"
			got, err := cfg.TrustedProxyPrefixes()
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldResemble, []netip.Prefix{
				netip.MustParsePrefix("10.0.0.0/8"),
				netip.MustParsePrefix("127.0.0.1/32"),
				netip.MustParsePrefix("::1/128"),
				netip.MustParsePrefix("192.168.1.0/24"),
			})
		})
	})
}
