package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound        = fmt.Errorf("%w: not found", domain.ErrProductUnavailable)
	ErrNoPrice                = fmt.Errorf("%w: no price", domain.ErrProductUnavailable)
	ErrNoEndpoints            = errors.New("no endpoints configured")
	ErrUnsupportedMarketplace = errors.New("unsupported marketplace")
)

// Client fetches listings of one marketplace from a chain of normalizer
// endpoints. Endpoints are tried in order until one answers; a definitive
// "not found" or "no price" answer stops the chain.
type Client struct {
	marketplace domain.Marketplace
	endpoints   []string
	client      *http.Client
	logger      *zap.Logger
}

func NewClient(marketplace domain.Marketplace, endpoints []string, timeout time.Duration, logger *zap.Logger) *Client {
	trimmed := make([]string, 0, len(endpoints))
	for _, endpoint := range endpoints {
		endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
		if endpoint != "" {
			trimmed = append(trimmed, endpoint)
		}
	}
	return &Client{
		marketplace: marketplace,
		endpoints:   trimmed,
		client:      &http.Client{Timeout: timeout},
		logger:      logger.With(zap.String("marketplace", string(marketplace))),
	}
}

func (c *Client) Marketplace() domain.Marketplace {
	return c.marketplace
}

func (c *Client) Fetch(ctx context.Context, externalID string) (*domain.ProductSnapshot, error) {
	if len(c.endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	errs := make([]error, 0, len(c.endpoints))
	for i, endpoint := range c.endpoints {
		snapshot, err := c.fetchFrom(ctx, endpoint, externalID)
		if err == nil {
			return snapshot, nil
		}
		if errors.Is(err, domain.ErrProductUnavailable) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		errs = append(errs, err)
		if i < len(c.endpoints)-1 {
			c.logger.Warn("marketplace endpoint failed, trying next", zap.String("endpoint", endpoint), zap.String("external_id", externalID), zap.Error(err))
		}
	}
	return nil, fmt.Errorf("fetch %s %s: all endpoints failed: %w", c.marketplace, externalID, errors.Join(errs...))
}

func (c *Client) fetchFrom(ctx context.Context, endpoint, externalID string) (*domain.ProductSnapshot, error) {
	target := fmt.Sprintf("%s/products/%s", endpoint, url.PathEscape(externalID))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")

	start := time.Now()
	response, err := c.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	c.logger.Debug(
		"marketplace request complete",
		zap.String("external_id", externalID),
		zap.String("url", target),
		zap.Int("status", response.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if response.StatusCode == http.StatusNotFound {
		return nil, ErrProductNotFound
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: status %d", endpoint, response.StatusCode)
	}

	var payload productResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", endpoint, err)
	}
	if !payload.Price.Valid || !payload.Price.Decimal.IsPositive() {
		return nil, ErrNoPrice
	}

	snapshot := payload.toSnapshot()
	snapshot.FetchedAt = start.UTC()
	return &snapshot, nil
}
