// Package client holds HTTP clients for the marketplace's own services and
// for the external payment provider.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopmesh/marketplace/internal/checkout"
	"github.com/shopmesh/marketplace/internal/model"
	"github.com/shopmesh/marketplace/internal/repository"
)

// Resolver yields a base URL for a named service.  Satisfied by
// discovery.Client; a fixedResolver covers deployments without Consul.
type Resolver interface {
	ServiceURL(name string) (string, error)
}

type fixedResolver string

func (f fixedResolver) ServiceURL(string) (string, error) { return string(f), nil }

// FixedURL returns a Resolver that always yields the given base URL.
func FixedURL(baseURL string) Resolver { return fixedResolver(baseURL) }

// CatalogClient calls the catalog service over HTTP.  The base URL is
// resolved per call so instances can come and go underneath us.
type CatalogClient struct {
	resolver Resolver
	service  string
	hc       *http.Client
}

// NewCatalogClient builds a client for the catalog service named in the
// resolver's registry.
func NewCatalogClient(r Resolver, service string) *CatalogClient {
	return &CatalogClient{
		resolver: r,
		service:  service,
		hc:       &http.Client{Timeout: 10 * time.Second},
	}
}

// PriceAndStock asks the catalog for the current price and availability of a
// product.  An unknown or inactive product maps to ErrProductNotFound, any
// transport or server failure to ErrCatalogUnavailable so callers can tell
// "bad request" from "try later".
func (c *CatalogClient) PriceAndStock(ctx context.Context, productID uint64) (*model.PriceAndStock, error) {
	base, err := c.resolver.ServiceURL(c.service)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", checkout.ErrCatalogUnavailable, err)
	}

	url := fmt.Sprintf("%s/v1/products/%d/availability", base, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", checkout.ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, repository.ErrProductNotFound
	default:
		log.Printf("client: catalog returned status %d for product %d", resp.StatusCode, productID)
		return nil, fmt.Errorf("%w: status %d", checkout.ErrCatalogUnavailable, resp.StatusCode)
	}

	var ps model.PriceAndStock
	if err := json.NewDecoder(resp.Body).Decode(&ps); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", checkout.ErrCatalogUnavailable, err)
	}
	return &ps, nil
}
