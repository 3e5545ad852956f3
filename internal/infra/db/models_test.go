package db

import (
	"testing"

	"github.com/NasaVasa/priceghost/internal/domain"
	"github.com/shopspring/decimal"
)

func TestNullDecimalRoundTrip(t *testing.T) {
	if got := decimalPtr(nullDecimal(nil)); got != nil {
		t.Fatalf("expected nil, got %s", got)
	}

	value := decimal.RequireFromString("1299.90")
	got := decimalPtr(nullDecimal(&value))
	if got == nil || !got.Equal(value) {
		t.Fatalf("expected %s, got %v", value, got)
	}
}

func TestMapMonitorEntriesSkipsOrphans(t *testing.T) {
	target := decimal.NewFromInt(500)
	models := []monitorModel{
		{
			ID:            1,
			SubscriberID:  10,
			ProductID:     20,
			TargetPrice:   nullDecimal(&target),
			NotifyAnyDrop: true,
			Active:        true,
			Subscriber:    &subscriberModel{ID: 10, TelegramUserID: 777, Tier: "PRO"},
			Product:       &productModel{ID: 20, Marketplace: "ozon", ExternalID: "42"},
		},
		{
			ID:           2,
			SubscriberID: 11,
			ProductID:    20,
			Active:       true,
			Product:      &productModel{ID: 20, Marketplace: "ozon", ExternalID: "42"},
		},
	}

	entries := mapMonitorEntries(models)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Subscriber.TelegramUserID != 777 || entry.Product.ExternalID != "42" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Monitor.TargetPrice == nil || !entry.Monitor.TargetPrice.Equal(target) {
		t.Fatalf("unexpected target %v", entry.Monitor.TargetPrice)
	}
	if entry.Monitor.LastNotifiedPrice != nil {
		t.Fatalf("expected no last notified price, got %s", entry.Monitor.LastNotifiedPrice)
	}
}

func TestMapSubscriberDefaultsTier(t *testing.T) {
	model := mapSubscriberToModel(domain.Subscriber{TelegramUserID: 5})
	if model.Tier != "FREE" {
		t.Fatalf("expected FREE, got %q", model.Tier)
	}
}
