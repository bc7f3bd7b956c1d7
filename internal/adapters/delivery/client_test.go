package delivery_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/beacon/internal/adapters/delivery"
	"github.com/okian/beacon/internal/domain/model"
	"github.com/okian/beacon/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// noSleep skips backoff delays while recording what was requested.
func noSleep(delays *[]time.Duration) delivery.Sleeper {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func testBatch(t *testing.T) *model.Batch {
	t.Helper()
	r, err := model.NewEvent("tap", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := model.NewBatch([]model.TelemetryRecord{r})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHTTPClientClassification(t *testing.T) {
	Convey("Given a delivery client", t, func() {
		ctx := context.Background()

		Convey("When the collector accepts the batch", func() {
			var calls atomic.Int32
			var gotContentType, gotAPIKey string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				gotContentType = r.Header.Get("Content-Type")
				gotAPIKey = r.Header.Get("X-Api-Key")
				w.WriteHeader(http.StatusAccepted)
			}))
			defer srv.Close()

			c, err := delivery.NewHTTPClient(srv.URL, delivery.WithAPIKey("secret"))
			So(err, ShouldBeNil)

			outcome := c.Send(ctx, testBatch(t))

			Convey("Then one attempt should succeed with the right headers", func() {
				So(outcome.IsSuccess(), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 1)
				So(gotContentType, ShouldEqual, "application/json")
				So(gotAPIKey, ShouldEqual, "secret")
			})
		})

		Convey("When the collector rejects the batch with a 4xx", func() {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusNotFound)
			}))
			defer srv.Close()

			var delays []time.Duration
			c, err := delivery.NewHTTPClient(srv.URL, delivery.WithSleeper(noSleep(&delays)))
			So(err, ShouldBeNil)

			outcome := c.Send(ctx, testBatch(t))

			Convey("Then it should give up immediately as terminal", func() {
				So(outcome.IsTerminal(), ShouldBeTrue)
				So(outcome.Reason, ShouldContainSubstring, "404")
				So(calls.Load(), ShouldEqual, 1)
				So(delays, ShouldBeEmpty)
			})
		})

		Convey("When the collector keeps failing with a 5xx", func() {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			var delays []time.Duration
			c, err := delivery.NewHTTPClient(srv.URL,
				delivery.WithMaxRetries(3),
				delivery.WithSleeper(noSleep(&delays)),
			)
			So(err, ShouldBeNil)

			outcome := c.Send(ctx, testBatch(t))

			Convey("Then every attempt should be used before reporting retryable", func() {
				So(outcome.IsRetryable(), ShouldBeTrue)
				So(outcome.Reason, ShouldContainSubstring, "500")
				So(calls.Load(), ShouldEqual, 3)
				So(len(delays), ShouldEqual, 2)
			})
		})

		Convey("When the collector recovers after two failures", func() {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) <= 2 {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			var delays []time.Duration
			c, err := delivery.NewHTTPClient(srv.URL,
				delivery.WithMaxRetries(3),
				delivery.WithBaseDelay(100*time.Millisecond),
				delivery.WithMaxJitter(0),
				delivery.WithSleeper(noSleep(&delays)),
			)
			So(err, ShouldBeNil)

			outcome := c.Send(ctx, testBatch(t))

			Convey("Then the retries should back off exponentially and succeed", func() {
				So(outcome.IsSuccess(), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, 3)
				So(len(delays), ShouldEqual, 2)
				So(delays[0], ShouldEqual, 100*time.Millisecond)
				So(delays[1], ShouldEqual, 200*time.Millisecond)
			})
		})

		Convey("When the collector is unreachable", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			srv.Close()

			var delays []time.Duration
			c, err := delivery.NewHTTPClient(srv.URL,
				delivery.WithMaxRetries(2),
				delivery.WithSleeper(noSleep(&delays)),
			)
			So(err, ShouldBeNil)

			outcome := c.Send(ctx, testBatch(t))

			Convey("Then the failure should be retryable, not terminal", func() {
				So(outcome.IsRetryable(), ShouldBeTrue)
				So(outcome.Reason, ShouldContainSubstring, "transport")
				So(len(delays), ShouldEqual, 1)
			})
		})

		Convey("When the context is canceled during backoff", func() {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer srv.Close()

			cancelCtx, cancel := context.WithCancel(ctx)
			c, err := delivery.NewHTTPClient(srv.URL,
				delivery.WithMaxRetries(3),
				delivery.WithSleeper(func(ctx context.Context, d time.Duration) error {
					cancel()
					return ctx.Err()
				}),
			)
			So(err, ShouldBeNil)

			outcome := c.Send(cancelCtx, testBatch(t))

			Convey("Then the send should stop as retryable without more attempts", func() {
				So(outcome.IsRetryable(), ShouldBeTrue)
				So(outcome.Reason, ShouldContainSubstring, "canceled")
				So(calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the endpoint is empty", func() {
			_, err := delivery.NewHTTPClient("")

			Convey("Then construction should fail", func() {
				So(err, ShouldEqual, delivery.ErrNoEndpoint)
			})
		})
	})
}

func TestBackoff(t *testing.T) {
	Convey("Given the backoff schedule", t, func() {
		base := 100 * time.Millisecond

		Convey("When jitter is disabled", func() {
			Convey("Then delays should double per attempt", func() {
				So(delivery.Backoff(0, base, 0, nil), ShouldEqual, 100*time.Millisecond)
				So(delivery.Backoff(1, base, 0, nil), ShouldEqual, 200*time.Millisecond)
				So(delivery.Backoff(2, base, 0, nil), ShouldEqual, 400*time.Millisecond)
				So(delivery.Backoff(3, base, 0, nil), ShouldEqual, 800*time.Millisecond)
			})
		})

		Convey("When jitter is enabled with a fixed source", func() {
			half := func() float64 { return 0.5 }

			Convey("Then half the jitter cap should be added", func() {
				So(delivery.Backoff(0, base, time.Second, half), ShouldEqual, 600*time.Millisecond)
				So(delivery.Backoff(1, base, time.Second, half), ShouldEqual, 700*time.Millisecond)
			})
		})

		Convey("When jitter is driven by a real source", func() {
			rng := func() float64 { return 0.999 }

			Convey("Then the delay should stay within base plus cap", func() {
				d := delivery.Backoff(0, base, time.Second, rng)
				So(d, ShouldBeGreaterThanOrEqualTo, base)
				So(d, ShouldBeLessThan, base+time.Second)
			})
		})
	})
}
