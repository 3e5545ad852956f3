package marketplace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/NasaVasa/priceghost/internal/domain"
	"github.com/shopspring/decimal"
)

// productResponse is the normalized listing returned by a marketplace
// normalizer. Prices may arrive as JSON numbers or strings.
type productResponse struct {
	Title           string          `json:"title"`
	Brand           string          `json:"brand"`
	Category        StringList      `json:"category"`
	SellerName      string          `json:"seller_name"`
	Price           NullableDecimal `json:"price"`
	OriginalPrice   NullableDecimal `json:"original_price"`
	DiscountPercent NullableDecimal `json:"discount_percent"`
	Rating          NullableDecimal `json:"rating"`
	ReviewCount     int             `json:"review_count"`
}

func (p productResponse) toSnapshot() domain.ProductSnapshot {
	snapshot := domain.ProductSnapshot{
		Title:           strings.TrimSpace(p.Title),
		Brand:           strings.TrimSpace(p.Brand),
		SellerName:      strings.TrimSpace(p.SellerName),
		Price:           p.Price.Decimal,
		OriginalPrice:   p.OriginalPrice.Ptr(),
		DiscountPercent: p.DiscountPercent.Ptr(),
		Rating:          p.Rating.Ptr(),
		ReviewCount:     p.ReviewCount,
	}
	if n := len(p.Category); n > 0 {
		snapshot.Category = p.Category[n-1]
	}
	// Normalizers sometimes echo the current price as the original one.
	if snapshot.OriginalPrice != nil && !snapshot.OriginalPrice.GreaterThan(snapshot.Price) {
		snapshot.OriginalPrice = nil
	}
	if snapshot.DiscountPercent == nil && snapshot.OriginalPrice != nil {
		discount := snapshot.OriginalPrice.Sub(snapshot.Price).Div(*snapshot.OriginalPrice).Mul(decimal.NewFromInt(100)).Round(2)
		snapshot.DiscountPercent = &discount
	}
	return snapshot
}

type NullableDecimal struct {
	Decimal decimal.Decimal
	Valid   bool
}

func (n NullableDecimal) Ptr() *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	value := n.Decimal
	return &value
}

func (n *NullableDecimal) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		n.Valid = false
		return nil
	}
	trimmed := strings.TrimSpace(string(data))
	if len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		trimmed = strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	}
	if trimmed == "" {
		n.Valid = false
		return nil
	}
	dec, err := decimal.NewFromString(trimmed)
	if err != nil {
		n.Valid = false
		return err
	}
	n.Decimal = dec
	n.Valid = true
	return nil
}

func (n NullableDecimal) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Decimal.String())
}

// StringList accepts a plain string, a JSON array or a string holding a
// JSON array.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*s = nil
		return nil
	}

	switch trimmed[0] {
	case '"':
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			*s = nil
			return nil
		}
		var values []string
		if err := json.Unmarshal([]byte(inner), &values); err == nil {
			*s = values
			return nil
		}
		*s = []string{inner}
		return nil
	case '[':
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		*s = values
		return nil
	default:
		return fmt.Errorf("unexpected string list format: %s", trimmed)
	}
}
