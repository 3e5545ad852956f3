package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"go.uber.org/zap/zaptest"
)

type schedulerFixture struct {
	*registryFixture
	snapshots *memSnapshots
	fetcher   *stubFetcher
	notifier  *recordingNotifier
	scheduler *MonitoringScheduler
}

func newSchedulerFixture(t *testing.T, cfg SchedulerConfig) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		registryFixture: newRegistryFixture(testTiers()),
		snapshots:       &memSnapshots{},
		fetcher:         newStubFetcher(),
		notifier:        &recordingNotifier{failFor: make(map[int64]bool)},
	}
	ledger := newTestLedger(t, f.snapshots)
	f.scheduler = NewMonitoringScheduler(f.registry, f.products, ledger, f.fetcher, f.notifier, cfg, zaptest.NewLogger(t))
	return f
}

// watch creates a product with a known cached price and a PRO subscriber
// monitoring it.
func (f *schedulerFixture) watch(t *testing.T, telegramUserID int64, externalID, cachedPrice string, opts MonitorOptions) *domain.Monitor {
	t.Helper()
	ctx := context.Background()
	product := f.product(externalID)
	if cachedPrice != "" {
		if err := f.products.ApplySnapshot(ctx, product.ID, domain.ProductSnapshot{Price: dec(cachedPrice)}); err != nil {
			t.Fatalf("ApplySnapshot: %v", err)
		}
	}
	subscriber, err := f.subscribers.GetByTelegramID(ctx, telegramUserID)
	if err != nil {
		subscriber = f.subscribers.add(paidSubscriber(telegramUserID, domain.TierPro))
	}
	outcome, monitor, err := f.registry.Add(ctx, subscriber.ID, product.ID, opts)
	if err != nil || outcome != MonitorAdded {
		t.Fatalf("Add = %s, %v", outcome, err)
	}
	return monitor
}

func (f *schedulerFixture) sweep(t *testing.T) SweepReport {
	t.Helper()
	report, err := f.scheduler.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	return report
}

func TestSweepFetchesEachProductOnce(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	for _, user := range []int64{1, 2, 3} {
		f.watch(t, user, "A", "1000", MonitorOptions{NotifyAnyDrop: true})
	}
	f.watch(t, 1, "B", "500", MonitorOptions{NotifyAnyDrop: true})
	f.fetcher.set(domain.MarketplaceOzon, "A", "900")
	f.fetcher.set(domain.MarketplaceOzon, "B", "500")

	report := f.sweep(t)

	if report.Monitors != 4 || report.Products != 2 || report.Refreshed != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if n := f.fetcher.callCount(domain.MarketplaceOzon, "A"); n != 1 {
		t.Fatalf("product A fetched %d times", n)
	}
	if report.Notified != 3 || len(f.notifier.messages()) != 3 {
		t.Fatalf("expected 3 drop notifications, report %+v", report)
	}
	product, _ := f.products.GetByID(context.Background(), f.product("A").ID)
	if !product.CurrentPrice.Equal(dec("900")) {
		t.Fatalf("cached price not refreshed: %s", product.CurrentPrice)
	}
	if n := f.snapshots.count(product.ID); n != 1 {
		t.Fatalf("expected one ledger row, got %d", n)
	}
}

func TestSweepTargetRatchet(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	monitor := f.watch(t, 1, "A", "1000", MonitorOptions{TargetPrice: decPtr("900")})

	f.fetcher.set(domain.MarketplaceOzon, "A", "880")
	if report := f.sweep(t); report.Notified != 1 {
		t.Fatalf("expected target notification, report %+v", report)
	}
	if last := f.monitors.get(monitor.ID).LastNotifiedPrice; last == nil || !last.Equal(dec("880")) {
		t.Fatalf("last notified = %v, want 880", last)
	}

	if report := f.sweep(t); report.Notified != 0 {
		t.Fatalf("unchanged price notified again, report %+v", report)
	}

	f.fetcher.set(domain.MarketplaceOzon, "A", "870")
	if report := f.sweep(t); report.Notified != 1 {
		t.Fatalf("lower price should notify, report %+v", report)
	}
	if len(f.notifier.messages()) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(f.notifier.messages()))
	}
}

func TestSweepAnyDropIgnoresRises(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	f.watch(t, 1, "A", "1000", MonitorOptions{NotifyAnyDrop: true})

	f.fetcher.set(domain.MarketplaceOzon, "A", "950")
	f.sweep(t)
	f.fetcher.set(domain.MarketplaceOzon, "A", "1000")
	f.sweep(t)
	f.fetcher.set(domain.MarketplaceOzon, "A", "960")
	f.sweep(t)

	messages := f.notifier.messages()
	if len(messages) != 1 {
		t.Fatalf("expected one notification, got %d", len(messages))
	}
	if !strings.Contains(messages[0].text, "Price dropped") || !strings.Contains(messages[0].text, "950") {
		t.Fatalf("unexpected text %q", messages[0].text)
	}
}

func TestSweepTargetTakesPrecedence(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	f.watch(t, 1, "A", "1000", MonitorOptions{TargetPrice: decPtr("900"), NotifyAnyDrop: true})
	f.fetcher.set(domain.MarketplaceOzon, "A", "880")

	f.sweep(t)

	messages := f.notifier.messages()
	if len(messages) != 1 || !strings.Contains(messages[0].text, "Target price reached") {
		t.Fatalf("expected a single target notification, got %+v", messages)
	}
}

func TestSweepRetriesFailedNotification(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	monitor := f.watch(t, 1, "A", "1000", MonitorOptions{TargetPrice: decPtr("900")})
	f.fetcher.set(domain.MarketplaceOzon, "A", "880")
	f.notifier.failFor[1] = true

	if report := f.sweep(t); report.NotifyFailed != 1 || report.Notified != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if last := f.monitors.get(monitor.ID).LastNotifiedPrice; last != nil {
		t.Fatalf("failed delivery recorded price %s", last)
	}

	f.notifier.failFor[1] = false
	if report := f.sweep(t); report.Notified != 1 {
		t.Fatalf("expected retry to deliver, report %+v", report)
	}
}

func TestSweepIsolatesFetchFailures(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	f.watch(t, 1, "A", "1000", MonitorOptions{NotifyAnyDrop: true})
	f.watch(t, 1, "B", "1000", MonitorOptions{NotifyAnyDrop: true})
	f.fetcher.fail(domain.MarketplaceOzon, "A", errors.New("timeout"))
	f.fetcher.set(domain.MarketplaceOzon, "B", "0")

	report := f.sweep(t)
	if report.Failed != 2 || report.Refreshed != 0 || report.Notified != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if n := f.snapshots.count(f.product("B").ID); n != 0 {
		t.Fatalf("zero price was recorded")
	}
}

func TestSweepFirstObservationDoesNotNotifyDrop(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	f.watch(t, 1, "A", "", MonitorOptions{NotifyAnyDrop: true})
	f.fetcher.set(domain.MarketplaceOzon, "A", "700")

	if report := f.sweep(t); report.Notified != 0 || report.Refreshed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestSweepStopsOnCancel(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{})
	f.watch(t, 1, "A", "1000", MonitorOptions{NotifyAnyDrop: true})
	f.fetcher.set(domain.MarketplaceOzon, "A", "900")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.scheduler.Sweep(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n := f.fetcher.callCount(domain.MarketplaceOzon, "A"); n != 0 {
		t.Fatalf("fetched after cancellation")
	}
}

func TestSchedulerRunsOnStart(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{Schedule: "@every 1h", RunOnStart: true})
	f.watch(t, 1, "A", "1000", MonitorOptions{NotifyAnyDrop: true})
	f.fetcher.set(domain.MarketplaceOzon, "A", "900")

	if err := f.scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.scheduler.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(f.notifier.messages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	f.scheduler.Stop(time.Second)

	if len(f.notifier.messages()) != 1 {
		t.Fatalf("expected the start-up sweep to notify once")
	}
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	f := newSchedulerFixture(t, SchedulerConfig{Schedule: "every so often"})
	if err := f.scheduler.Start(context.Background()); err == nil {
		t.Fatal("expected schedule parse error")
	}
}
