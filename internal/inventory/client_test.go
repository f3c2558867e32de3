package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/example/order-lifecycle/internal/orders"
)

type fakeProduct struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	IsActive bool    `json:"isActive"`
}

// fakeInventoryServer mimics the product service's get-by-id and stock-patch
// endpoints.
type fakeInventoryServer struct {
	mu       sync.Mutex
	products map[string]fakeProduct
	patches  []int
}

func (s *fakeInventoryServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		p, ok := s.products[r.PathValue("id")]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("PATCH /products/{id}/stock", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		var body struct {
			Quantity int `json:"quantity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		p, ok := s.products[r.PathValue("id")]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		p.Stock += body.Quantity
		s.products[r.PathValue("id")] = p
		s.patches = append(s.patches, body.Quantity)
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newTestClient(t *testing.T, products map[string]fakeProduct) (*Client, *fakeInventoryServer) {
	t.Helper()
	fake := &fakeInventoryServer{products: products}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL), fake
}

func TestValidateProducts(t *testing.T) {
	c, _ := newTestClient(t, map[string]fakeProduct{
		"p1": {ID: "p1", Name: "Headphones", Price: 10.99, Stock: 4, IsActive: true},
		"p2": {ID: "p2", Name: "Keyboard", Price: 24.99, Stock: 2, IsActive: true},
	})

	got, err := c.ValidateProducts(context.Background(), []string{"p1", "p2"})
	if err != nil {
		t.Fatalf("ValidateProducts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d products, want 2", len(got))
	}
	if got["p1"].Name != "Headphones" || got["p1"].Stock != 4 {
		t.Errorf("p1 = %+v", got["p1"])
	}
	if got["p2"].Price.String() != "24.99" {
		t.Errorf("p2 price = %s, want 24.99", got["p2"].Price)
	}
}

func TestValidateProductsUnknownID(t *testing.T) {
	c, _ := newTestClient(t, map[string]fakeProduct{
		"p1": {ID: "p1", Name: "Headphones", Price: 10.99, Stock: 4, IsActive: true},
	})

	_, err := c.ValidateProducts(context.Background(), []string{"p1", "ghost"})
	var pe *orders.ProductUnavailableError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProductUnavailableError", err)
	}
	if pe.ProductID != "ghost" {
		t.Errorf("product id = %q, want ghost", pe.ProductID)
	}
}

func TestValidateProductsInactive(t *testing.T) {
	c, _ := newTestClient(t, map[string]fakeProduct{
		"p1": {ID: "p1", Name: "Discontinued", Price: 5, Stock: 9, IsActive: false},
	})

	_, err := c.ValidateProducts(context.Background(), []string{"p1"})
	var pe *orders.ProductUnavailableError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProductUnavailableError for inactive product", err)
	}
}

func TestReserveAndReleasePatchStock(t *testing.T) {
	c, fake := newTestClient(t, map[string]fakeProduct{
		"p1": {ID: "p1", Name: "Headphones", Price: 10.99, Stock: 10, IsActive: true},
	})

	if err := c.ReserveStock(context.Background(), "p1", 3); err != nil {
		t.Fatalf("ReserveStock: %v", err)
	}
	if err := c.ReleaseStock(context.Background(), "p1", 3); err != nil {
		t.Fatalf("ReleaseStock: %v", err)
	}
	if len(fake.patches) != 2 || fake.patches[0] != -3 || fake.patches[1] != 3 {
		t.Errorf("patches = %v, want [-3 3]", fake.patches)
	}
	if fake.products["p1"].Stock != 10 {
		t.Errorf("stock = %d, want back to 10", fake.products["p1"].Stock)
	}
}

func TestDecreaseStock(t *testing.T) {
	c, fake := newTestClient(t, map[string]fakeProduct{
		"p1": {ID: "p1", Name: "Headphones", Price: 10.99, Stock: 2, IsActive: true},
	})

	if err := c.DecreaseStock(context.Background(), "p1", 2); err != nil {
		t.Fatalf("DecreaseStock: %v", err)
	}
	if fake.products["p1"].Stock != 0 {
		t.Errorf("stock = %d, want 0", fake.products["p1"].Stock)
	}

	err := c.DecreaseStock(context.Background(), "p1", 1)
	var ie *orders.InsufficientStockError
	if !errors.As(err, &ie) {
		t.Fatalf("err = %v, want InsufficientStockError", err)
	}
	if ie.Requested != 1 || ie.Available != 0 {
		t.Errorf("error detail = %+v", ie)
	}
	if len(fake.patches) != 1 {
		t.Errorf("patches = %v, refused decrease must not reach the server", fake.patches)
	}
}
