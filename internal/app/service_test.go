package app_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/okian/beacon/internal/adapters/spool"
	"github.com/okian/beacon/internal/app"
	"github.com/okian/beacon/internal/config"
	"github.com/okian/beacon/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// No logger.Init in this package on purpose: the service must come up with
// logging left entirely unconfigured by the host.

// collector is an httptest-backed stand-in for the remote endpoint.
type collector struct {
	mu      sync.Mutex
	batches []*model.Batch
	status  int
	srv     *httptest.Server
}

func newCollector(status int) *collector {
	c := &collector{status: status}
	c.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var b model.Batch
		if err := json.Unmarshal(body, &b); err == nil {
			c.mu.Lock()
			c.batches = append(c.batches, &b)
			c.mu.Unlock()
		}
		w.WriteHeader(c.status)
	}))
	return c
}

func (c *collector) received() []*model.Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.Batch, len(c.batches))
	copy(out, c.batches)
	return out
}

func (c *collector) recordCount() int {
	n := 0
	for _, b := range c.received() {
		n += b.Size()
	}
	return n
}

// fakeClient short-circuits delivery with a fixed outcome.
type fakeClient struct {
	outcome model.DeliveryOutcome
}

func (c *fakeClient) Send(ctx context.Context, b *model.Batch) model.DeliveryOutcome {
	return c.outcome
}

// waitFor polls cond until true or the deadline passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestServiceDelivery(t *testing.T) {
	Convey("Given a running telemetry service", t, func() {
		ctx := context.Background()
		col := newCollector(http.StatusAccepted)
		defer col.srv.Close()

		svc := app.New(
			app.WithEndpoint(col.srv.URL),
			app.WithBatchSize(3),
			app.WithDispatcherCount(1),
			app.WithSpoolDir(t.TempDir()),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When enough records arrive to fill a batch", func() {
			So(svc.RecordEvent(ctx, "tap", nil), ShouldBeNil)
			So(svc.RecordEvent(ctx, "swipe", nil), ShouldBeNil)
			So(svc.RecordMetric(ctx, "fps", 60, nil), ShouldBeNil)

			Convey("Then the collector receives one complete batch", func() {
				So(waitFor(func() bool { return len(col.received()) == 1 }), ShouldBeTrue)
				got := col.received()[0]
				So(got.Size(), ShouldEqual, 3)
				So(got.Records[0].Name, ShouldEqual, "tap")
				So(got.Records[2].Name, ShouldEqual, "fps")
			})
		})

		Convey("When the queue is below the threshold and the app stops", func() {
			So(svc.RecordEvent(ctx, "lonely", nil), ShouldBeNil)
			svc.Stop()

			Convey("Then the final flush delivers the partial batch", func() {
				So(waitFor(func() bool { return col.recordCount() == 1 }), ShouldBeTrue)
			})
		})

		Convey("When a record has an empty name", func() {
			Convey("Then it is rejected at the door", func() {
				So(svc.RecordEvent(ctx, "", nil), ShouldNotBeNil)
				So(svc.RecordMetric(ctx, "", 1, nil), ShouldNotBeNil)
			})
		})

		Convey("When a screen visit ends", func() {
			svc.OnScreenEnter(ctx, "checkout")
			time.Sleep(10 * time.Millisecond)
			svc.OnScreenExit(ctx, "checkout")
			svc.ForceFlush(ctx)

			Convey("Then a screen time metric reaches the collector", func() {
				So(waitFor(func() bool { return col.recordCount() == 1 }), ShouldBeTrue)
				r := col.received()[0].Records[0]
				So(r.Name, ShouldEqual, "screen_time_ms")
				So(r.Value, ShouldNotBeNil)
				So(*r.Value, ShouldBeGreaterThan, 0)
				screen, ok := r.Attributes.Get("screen")
				So(ok, ShouldBeTrue)
				So(screen, ShouldEqual, "checkout")
			})
		})
	})
}

func TestServiceOfflineReconciliation(t *testing.T) {
	Convey("Given a service whose collector is down", t, func() {
		ctx := context.Background()
		dir := t.TempDir()

		broken := app.New(
			app.WithEndpoint("http://unused.invalid"),
			app.WithBatchSize(2),
			app.WithDispatcherCount(1),
			app.WithSpoolDir(dir),
			app.WithDeliveryClient(&fakeClient{outcome: model.RetryableFailure("offline")}),
		)
		So(broken.Start(ctx), ShouldBeNil)

		So(broken.RecordEvent(ctx, "offline-1", nil), ShouldBeNil)
		So(broken.RecordEvent(ctx, "offline-2", nil), ShouldBeNil)
		broken.Stop()

		fs, err := spool.NewFileSpool(dir, spool.WithSync(false))
		So(err, ShouldBeNil)
		So(fs.Size(ctx), ShouldEqual, 1)

		Convey("When a later run comes back online and reconciles", func() {
			col := newCollector(http.StatusOK)
			defer col.srv.Close()

			healthy := app.New(
				app.WithEndpoint(col.srv.URL),
				app.WithBatchSize(2),
				app.WithDispatcherCount(1),
				app.WithSpoolDir(dir),
			)
			So(healthy.Start(ctx), ShouldBeNil)
			defer healthy.Stop()

			Convey("Then the spooled batch is delivered and removed", func() {
				So(waitFor(func() bool { return col.recordCount() == 2 }), ShouldBeTrue)
				So(waitFor(func() bool { return fs.Size(ctx) == 0 }), ShouldBeTrue)
				names := []string{col.received()[0].Records[0].Name, col.received()[0].Records[1].Name}
				So(names, ShouldResemble, []string{"offline-1", "offline-2"})
			})
		})

		Convey("When foregrounding triggers another pass", func() {
			col := newCollector(http.StatusOK)
			defer col.srv.Close()

			healthy := app.New(
				app.WithEndpoint(col.srv.URL),
				app.WithBatchSize(2),
				app.WithSpoolDir(dir),
				app.WithDeliveryClient(&fakeClient{outcome: model.RetryableFailure("still offline")}),
			)
			So(healthy.Start(ctx), ShouldBeNil)
			defer healthy.Stop()

			// The startup pass cannot deliver; the entry must survive it.
			time.Sleep(100 * time.Millisecond)
			So(fs.Size(ctx), ShouldEqual, 1)

			Convey("Then a synchronous pass reports what it delivered", func() {
				So(healthy.Reconcile(ctx), ShouldEqual, 0)
			})
		})
	})
}

func TestServiceCrashCapture(t *testing.T) {
	Convey("Given a service facing a crashing host", t, func() {
		ctx := context.Background()
		dir := t.TempDir()

		Convey("When the crash batch cannot be delivered", func() {
			svc := app.New(
				app.WithEndpoint("http://unused.invalid"),
				app.WithSpoolDir(dir),
				app.WithEmergencyTimeout(50*time.Millisecond),
				app.WithDeliveryClient(&fakeClient{outcome: model.RetryableFailure("offline")}),
			)
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			So(svc.RecordEvent(ctx, "queued-before-crash", nil), ShouldBeNil)
			svc.CapturePanic(ctx, "fatal: nil dereference")

			Convey("Then the crash batch and the queued records survive on disk", func() {
				fs, err := spool.NewFileSpool(dir, spool.WithSync(false))
				So(err, ShouldBeNil)
				batches := fs.ReadAll(ctx)
				So(len(batches), ShouldEqual, 2)

				var names []string
				for _, b := range batches {
					for _, r := range b.Records {
						names = append(names, r.Name)
					}
				}
				So(names, ShouldContain, "app_crash")
				So(names, ShouldContain, "queued-before-crash")

				var crashRecord *model.TelemetryRecord
				for _, b := range batches {
					for i := range b.Records {
						if b.Records[i].Name == "app_crash" {
							crashRecord = &b.Records[i]
						}
					}
				}
				So(crashRecord, ShouldNotBeNil)
				msg, ok := crashRecord.Attributes.Get("exception_message")
				So(ok, ShouldBeTrue)
				So(msg, ShouldEqual, "fatal: nil dereference")
			})
		})

		Convey("When the emergency send succeeds", func() {
			col := newCollector(http.StatusOK)
			defer col.srv.Close()

			svc := app.New(
				app.WithEndpoint(col.srv.URL),
				app.WithSpoolDir(dir),
			)
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			svc.CapturePanic(ctx, "fatal: but reported")

			Convey("Then the batch is delivered and the spool stays clean", func() {
				So(waitFor(func() bool { return col.recordCount() == 1 }), ShouldBeTrue)
				fs, err := spool.NewFileSpool(dir, spool.WithSync(false))
				So(err, ShouldBeNil)
				So(fs.Size(ctx), ShouldEqual, 0)
			})
		})
	})
}

func TestServiceWithoutLoggerSetup(t *testing.T) {
	Convey("Given a host that never configured logging", t, func() {
		ctx := context.Background()
		svc := app.New(
			app.WithEndpoint("http://localhost:1"),
			app.WithSpoolDir(t.TempDir()),
			app.WithDeliveryClient(&fakeClient{outcome: model.RetryableFailure("offline")}),
		)

		Convey("When the service runs a full record-and-stop cycle", func() {
			Convey("Then nothing panics across the public boundary", func() {
				So(func() {
					So(svc.Start(ctx), ShouldBeNil)
					So(svc.RecordEvent(ctx, "tap", nil), ShouldBeNil)
					svc.CapturePanic(ctx, "boom")
					svc.Stop()
				}, ShouldNotPanic)
			})
		})
	})
}

func TestNewFromConfig(t *testing.T) {
	Convey("Given a loaded configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.Endpoint = "https://collector.example.com/v1/batches"
		cfg.BatchSize = 5
		cfg.DispatcherCount = 1
		cfg.SpoolDir = t.TempDir()

		Convey("When building a service from it", func() {
			svc := app.NewFromConfig(cfg,
				app.WithDeliveryClient(&fakeClient{outcome: model.Success()}),
			)
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			Convey("Then the configuration drives the service", func() {
				stats := svc.GetStats()
				So(stats["batchSize"], ShouldEqual, 5)
				So(stats["dispatchers"], ShouldEqual, 1)
			})
		})
	})
}

func TestServiceStats(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		col := newCollector(http.StatusOK)
		defer col.srv.Close()

		svc := app.New(
			app.WithEndpoint(col.srv.URL),
			app.WithBatchSize(100),
			app.WithSpoolDir(t.TempDir()),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When records are queued below the threshold", func() {
			So(svc.RecordEvent(ctx, "one", nil), ShouldBeNil)
			So(svc.RecordEvent(ctx, "two", nil), ShouldBeNil)

			stats := svc.GetStats()

			Convey("Then the stats reflect the queue", func() {
				So(stats["started"], ShouldBeTrue)
				So(stats["queueLength"], ShouldEqual, 2)
				So(stats["spooledBatches"], ShouldEqual, 0)
			})
		})
	})
}
