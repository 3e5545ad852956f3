package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func decPtr(value string) *decimal.Decimal {
	d := dec(value)
	return &d
}

var errDuplicateKey = errors.New("duplicate key value violates unique constraint")

type memSubscribers struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]domain.Subscriber
}

func newMemSubscribers() *memSubscribers {
	return &memSubscribers{rows: make(map[uint]domain.Subscriber)}
}

func (m *memSubscribers) add(subscriber domain.Subscriber) *domain.Subscriber {
	if err := m.Create(context.Background(), &subscriber); err != nil {
		panic(err)
	}
	return &subscriber
}

func (m *memSubscribers) GetByTelegramID(_ context.Context, telegramUserID int64) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.TelegramUserID == telegramUserID {
			return &row, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscribers) GetByID(_ context.Context, subscriberID uint) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[subscriberID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &row, nil
}

func (m *memSubscribers) Create(_ context.Context, subscriber *domain.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.TelegramUserID == subscriber.TelegramUserID {
			return errDuplicateKey
		}
	}
	m.nextID++
	subscriber.ID = m.nextID
	if subscriber.Tier == "" {
		subscriber.Tier = domain.TierFree
	}
	m.rows[subscriber.ID] = *subscriber
	return nil
}

func (m *memSubscribers) SetTier(_ context.Context, subscriberID uint, tier domain.Tier, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[subscriberID]
	if !ok {
		return domain.ErrNotFound
	}
	row.Tier = tier
	row.TierExpiresAt = &expiresAt
	m.rows[subscriberID] = row
	return nil
}

func (m *memSubscribers) UpdateUsage(_ context.Context, subscriberID uint, apply func(*domain.Subscriber) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[subscriberID]
	if !ok {
		return domain.ErrNotFound
	}
	if apply(&row) {
		m.rows[subscriberID] = row
	}
	return nil
}

type memProducts struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]domain.Product
}

func newMemProducts() *memProducts {
	return &memProducts{rows: make(map[uint]domain.Product)}
}

func (m *memProducts) GetOrCreate(_ context.Context, marketplace domain.Marketplace, externalID, url string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Marketplace == marketplace && row.ExternalID == externalID {
			return &row, nil
		}
	}
	m.nextID++
	row := domain.Product{ID: m.nextID, Marketplace: marketplace, ExternalID: externalID, URL: url}
	m.rows[row.ID] = row
	return &row, nil
}

func (m *memProducts) GetByID(_ context.Context, productID uint) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &row, nil
}

func (m *memProducts) ApplySnapshot(_ context.Context, productID uint, snapshot domain.ProductSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[productID]
	if !ok {
		return domain.ErrNotFound
	}
	applySnapshotToProduct(&row, snapshot)
	m.rows[productID] = row
	return nil
}

type memSnapshots struct {
	mu     sync.Mutex
	nextID uint
	rows   []domain.PriceSnapshot
}

func (m *memSnapshots) Append(_ context.Context, snapshot *domain.PriceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	snapshot.ID = m.nextID
	m.rows = append(m.rows, *snapshot)
	return nil
}

func (m *memSnapshots) ListSince(_ context.Context, productID uint, since time.Time) ([]domain.PriceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PriceSnapshot
	for _, row := range m.rows {
		if row.ProductID == productID && !row.RecordedAt.Before(since) {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

// seed stores prices one day apart, the last one daysAgo before testNow.
func (m *memSnapshots) seed(productID uint, daysAgo int, prices ...string) {
	start := testNow.AddDate(0, 0, -daysAgo-len(prices)+1)
	for i, price := range prices {
		_ = m.Append(context.Background(), &domain.PriceSnapshot{
			ProductID:  productID,
			Price:      dec(price),
			RecordedAt: start.AddDate(0, 0, i),
		})
	}
}

func (m *memSnapshots) count(productID uint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if row.ProductID == productID {
			n++
		}
	}
	return n
}

type memMonitors struct {
	mu          sync.Mutex
	nextID      uint
	rows        map[uint]domain.Monitor
	subscribers *memSubscribers
	products    *memProducts
}

func newMemMonitors(subscribers *memSubscribers, products *memProducts) *memMonitors {
	return &memMonitors{rows: make(map[uint]domain.Monitor), subscribers: subscribers, products: products}
}

func (m *memMonitors) GetByPair(_ context.Context, subscriberID, productID uint) (*domain.Monitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.SubscriberID == subscriberID && row.ProductID == productID {
			return &row, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memMonitors) Create(_ context.Context, monitor *domain.Monitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.SubscriberID == monitor.SubscriberID && row.ProductID == monitor.ProductID {
			return errors.New("duplicate monitor")
		}
	}
	m.nextID++
	monitor.ID = m.nextID
	m.rows[monitor.ID] = *monitor
	return nil
}

func (m *memMonitors) Reactivate(_ context.Context, monitorID uint, targetPrice *decimal.Decimal, notifyAnyDrop bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[monitorID]
	if !ok {
		return domain.ErrNotFound
	}
	row.TargetPrice = targetPrice
	row.NotifyAnyDrop = notifyAnyDrop
	row.Active = true
	m.rows[monitorID] = row
	return nil
}

func (m *memMonitors) Deactivate(_ context.Context, subscriberID, productID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, row := range m.rows {
		if row.SubscriberID == subscriberID && row.ProductID == productID {
			row.Active = false
			m.rows[id] = row
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memMonitors) CountActive(_ context.Context, subscriberID uint) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if row.SubscriberID == subscriberID && row.Active {
			n++
		}
	}
	return n, nil
}

func (m *memMonitors) ListActiveBySubscriber(ctx context.Context, subscriberID uint) ([]domain.MonitorEntry, error) {
	all, err := m.ListAllActive(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.MonitorEntry
	for _, entry := range all {
		if entry.Monitor.SubscriberID == subscriberID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (m *memMonitors) ListAllActive(ctx context.Context) ([]domain.MonitorEntry, error) {
	m.mu.Lock()
	rows := make([]domain.Monitor, 0, len(m.rows))
	for _, row := range m.rows {
		if row.Active {
			rows = append(rows, row)
		}
	}
	m.mu.Unlock()
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	out := make([]domain.MonitorEntry, 0, len(rows))
	for _, row := range rows {
		subscriber, err := m.subscribers.GetByID(ctx, row.SubscriberID)
		if err != nil {
			return nil, err
		}
		product, err := m.products.GetByID(ctx, row.ProductID)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.MonitorEntry{Monitor: row, Product: *product, Subscriber: *subscriber})
	}
	return out, nil
}

func (m *memMonitors) MarkNotified(_ context.Context, monitorID uint, price decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[monitorID]
	if !ok {
		return domain.ErrNotFound
	}
	row.LastNotifiedPrice = &price
	m.rows[monitorID] = row
	return nil
}

func (m *memMonitors) get(monitorID uint) domain.Monitor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[monitorID]
}

type stubFetcher struct {
	mu     sync.Mutex
	prices map[string]string
	errs   map[string]error
	calls  map[string]int
	cached map[string]bool
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{prices: make(map[string]string), errs: make(map[string]error), calls: make(map[string]int), cached: make(map[string]bool)}
}

func fetchKey(marketplace domain.Marketplace, externalID string) string {
	return fmt.Sprintf("%s:%s", marketplace, externalID)
}

func (f *stubFetcher) set(marketplace domain.Marketplace, externalID, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[fetchKey(marketplace, externalID)] = price
}

// replay makes later fetches of the listing look like cache hits.
func (f *stubFetcher) replay(marketplace domain.Marketplace, externalID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cached[fetchKey(marketplace, externalID)] = true
}

func (f *stubFetcher) fail(marketplace domain.Marketplace, externalID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[fetchKey(marketplace, externalID)] = err
}

func (f *stubFetcher) callCount(marketplace domain.Marketplace, externalID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[fetchKey(marketplace, externalID)]
}

func (f *stubFetcher) Fetch(_ context.Context, marketplace domain.Marketplace, externalID string) (*domain.ProductSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fetchKey(marketplace, externalID)
	f.calls[key]++
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	price, ok := f.prices[key]
	if !ok {
		return nil, domain.ErrProductUnavailable
	}
	return &domain.ProductSnapshot{Title: "Item " + externalID, Price: dec(price), FetchedAt: testNow, Cached: f.cached[key]}, nil
}

type sentMessage struct {
	telegramUserID int64
	text           string
}

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[int64]bool
}

func (n *recordingNotifier) Notify(telegramUserID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[telegramUserID] {
		return errors.New("telegram unavailable")
	}
	n.sent = append(n.sent, sentMessage{telegramUserID: telegramUserID, text: text})
	return nil
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

func testTiers() domain.TierTable {
	return domain.TierTable{
		domain.TierFree:    {ChecksPerDay: 3, MonitorItems: 0, HistoryDays: 30},
		domain.TierPro:     {ChecksPerDay: 30, MonitorItems: 20, HistoryDays: 365},
		domain.TierPremium: {ChecksPerDay: 999999, MonitorItems: 50, HistoryDays: 365},
	}
}

func paidSubscriber(telegramUserID int64, tier domain.Tier) domain.Subscriber {
	expires := testNow.AddDate(0, 1, 0)
	return domain.Subscriber{TelegramUserID: telegramUserID, Tier: tier, TierExpiresAt: &expires}
}

func snapshotAt(productID uint, price string, at time.Time) domain.PriceSnapshot {
	return domain.PriceSnapshot{ProductID: productID, Price: dec(price), RecordedAt: at}
}
