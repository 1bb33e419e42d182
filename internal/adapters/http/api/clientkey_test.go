package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	eventqueue "github.com/okian/whovapes/internal/adapters/mq/queue"
	"github.com/okian/whovapes/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClientKey(t *testing.T) {
	Convey("Given requests from different networks", t, func() {
		direct := clientResolver{}
		proxied := clientResolver{trusted: []netip.Prefix{
			netip.MustParsePrefix("10.0.0.0/8"),
			netip.MustParsePrefix("::1/128"),
		}}

		Convey("IPv4 socket addresses collapse to their /24", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "203.0.113.77:5123"
			So(direct.key(r), ShouldEqual, "203.0.113.0/24")
		})

		Convey("Forwarded hops from an untrusted peer are ignored", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "203.0.113.7:80"
			r.Header.Set("X-Forwarded-For", "198.51.100.9")
			So(direct.key(r), ShouldEqual, "203.0.113.0/24")
			So(proxied.key(r), ShouldEqual, "203.0.113.0/24")
		})

		Convey("Behind a trusted proxy the nearest untrusted hop wins", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "10.0.0.1:80"
			r.Header.Set("X-Forwarded-For", "6.6.6.6, 198.51.100.9 , 10.1.2.3")
			So(proxied.key(r), ShouldEqual, "198.51.100.0/24")
		})

		Convey("A trusted proxy without a forwarded header is the client", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "[::1]:80"
			So(proxied.key(r), ShouldEqual, "::/48")
		})

		Convey("IPv6 addresses collapse to their /48", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "[2001:db8:abcd:12::1]:443"
			So(direct.key(r), ShouldEqual, "2001:db8:abcd::/48")
		})

		Convey("IPv4-mapped IPv6 is treated as IPv4", func() {
			So(coarsen("::ffff:192.0.2.200"), ShouldEqual, "192.0.2.0/24")
		})

		Convey("Garbage is reported as unknown", func() {
			So(coarsen("not-an-ip"), ShouldEqual, unknownClient)
		})
	})
}

func TestStatusFor(t *testing.T) {
	Convey("Given the domain error taxonomy", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{model.NewValidationError("x", "bad"), http.StatusBadRequest, "bad_request"},
			{NewKind("op", ErrBadRequest), http.StatusBadRequest, "bad_request"},
			{model.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
			{model.NewNotFound("x"), http.StatusNotFound, "not_found"},
			{model.ErrConflict, http.StatusConflict, "conflict"},
			{fmt.Errorf("key: %w", model.ErrDuplicate), http.StatusConflict, "duplicate"},
			{model.ErrInsufficientData, http.StatusConflict, "insufficient_data"},
			{&model.RateLimitedError{Scope: "vote", RetryAfter: time.Second}, http.StatusTooManyRequests, "rate_limited"},
			{eventqueue.ErrClosed, http.StatusServiceUnavailable, "unavailable"},
			{model.Upstream("op", errors.New("boom")), http.StatusBadGateway, "upstream_error"},
			{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		}
		for _, c := range cases {
			status, code := statusFor(c.err)
			So(status, ShouldEqual, c.status)
			So(code, ShouldEqual, c.code)
		}
	})

	Convey("Retry hints round up to whole seconds", t, func() {
		So(retryAfterSeconds(1500*time.Millisecond), ShouldEqual, "2")
		So(retryAfterSeconds(0), ShouldEqual, "1")
		So(retryAfterSeconds(30*time.Second), ShouldEqual, "30")
	})
}
