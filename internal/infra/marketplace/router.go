package marketplace

import (
	"context"
	"fmt"
	"time"

	"github.com/NasaVasa/priceghost/internal/domain"
	"go.uber.org/zap"
)

// Router dispatches fetches to the client registered for the marketplace tag.
type Router struct {
	clients map[domain.Marketplace]*Client
}

func NewRouter(clients ...*Client) *Router {
	router := &Router{clients: make(map[domain.Marketplace]*Client, len(clients))}
	for _, client := range clients {
		router.clients[client.Marketplace()] = client
	}
	return router
}

// NewRouterFromEndpoints builds a client for every marketplace that has at
// least one endpoint.
func NewRouterFromEndpoints(endpoints map[domain.Marketplace][]string, timeout time.Duration, logger *zap.Logger) *Router {
	clients := make([]*Client, 0, len(endpoints))
	for _, marketplace := range domain.Marketplaces {
		if len(endpoints[marketplace]) == 0 {
			continue
		}
		clients = append(clients, NewClient(marketplace, endpoints[marketplace], timeout, logger))
	}
	return NewRouter(clients...)
}

func (r *Router) Fetch(ctx context.Context, marketplace domain.Marketplace, externalID string) (*domain.ProductSnapshot, error) {
	client, ok := r.clients[marketplace]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMarketplace, marketplace)
	}
	return client.Fetch(ctx, externalID)
}

func (r *Router) Marketplaces() []domain.Marketplace {
	out := make([]domain.Marketplace, 0, len(r.clients))
	for _, marketplace := range domain.Marketplaces {
		if _, ok := r.clients[marketplace]; ok {
			out = append(out, marketplace)
		}
	}
	return out
}
