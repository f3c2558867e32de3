package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/example/order-lifecycle/internal/orders"
)

// Client talks to the inventory/product service over HTTP. It implements
// orders.Inventory: product validation for order creation, advisory
// reserve/release, and the fatal ship-time decrease.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

var _ orders.Inventory = (*Client)(nil)

type productResponse struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	IsActive bool            `json:"isActive"`
}

type stockPatch struct {
	Quantity int `json:"quantity"` // negative decreases, positive increases
}

// ValidateProducts fetches every product concurrently and joins the results.
// The first unavailable product fails the whole call: an order referencing
// any unavailable product is rejected wholesale.
func (c *Client) ValidateProducts(ctx context.Context, productIDs []string) (map[string]orders.ProductInfo, error) {
	var mu sync.Mutex
	out := make(map[string]orders.ProductInfo, len(productIDs))

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range productIDs {
		id := id
		g.Go(func() error {
			p, err := c.getProduct(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = orders.ProductInfo{Price: p.Price, Name: p.Name, Stock: p.Stock}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getProduct(ctx context.Context, id string) (*productResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/products/"+id, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build product request")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch product %s", id)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &orders.ProductUnavailableError{ProductID: id}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch product %s: unexpected status %d", id, resp.StatusCode)
	}
	var p productResponse
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, errors.Wrapf(err, "decode product %s", id)
	}
	if !p.IsActive {
		return nil, &orders.ProductUnavailableError{ProductID: id}
	}
	return &p, nil
}

// ReserveStock places an advisory hold. The caller treats failure as
// non-fatal.
func (c *Client) ReserveStock(ctx context.Context, productID string, qty int) error {
	return c.patchStock(ctx, productID, -qty, "reserve")
}

// ReleaseStock returns a previously reserved quantity.
func (c *Client) ReleaseStock(ctx context.Context, productID string, qty int) error {
	return c.patchStock(ctx, productID, qty, "release")
}

// DecreaseStock permanently decrements stock. It re-reads current stock
// first and refuses to go negative; this failure IS fatal to the caller.
func (c *Client) DecreaseStock(ctx context.Context, productID string, qty int) error {
	p, err := c.getProduct(ctx, productID)
	if err != nil {
		return err
	}
	if p.Stock < qty {
		return &orders.InsufficientStockError{ProductID: productID, Requested: qty, Available: p.Stock}
	}
	return c.patchStock(ctx, productID, -qty, "decrease")
}

func (c *Client) patchStock(ctx context.Context, productID string, delta int, op string) error {
	body, err := json.Marshal(stockPatch{Quantity: delta})
	if err != nil {
		return errors.Wrap(err, "marshal stock patch")
	}
	url := fmt.Sprintf("%s/products/%s/stock", c.BaseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build stock request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s stock for product %s", op, productID)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return errors.Errorf("%s stock for product %s: unexpected status %d", op, productID, resp.StatusCode)
	}
	return nil
}
