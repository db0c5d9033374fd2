package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/products/p1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"p1","title":"Mug","image":"mug.png","price":5000,"salePrice":4500,"stock":3}`))
	})
	mux.HandleFunc("/products/p2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title":"Plate","price":1200,"stock":0}`))
	})
	mux.HandleFunc("/products/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetProduct(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(srv.URL+"/", time.Second)
	ctx := context.Background()

	p, err := c.GetProduct(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Mug", p.Title)
	assert.Equal(t, 3, p.Stock)
	assert.Equal(t, int64(4500), p.UnitPrice())

	p, err = c.GetProduct(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "p2", p.ID)
	assert.Equal(t, int64(1200), p.UnitPrice())

	p, err = c.GetProduct(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = c.GetProduct(ctx, "broken")
	assert.ErrorContains(t, err, "status 502")
}

func TestUnitPrice(t *testing.T) {
	higher := int64(6000)
	zero := int64(0)
	lower := int64(100)

	assert.Equal(t, int64(5000), (&Product{Price: 5000, SalePrice: &higher}).UnitPrice())
	assert.Equal(t, int64(5000), (&Product{Price: 5000, SalePrice: &zero}).UnitPrice())
	assert.Equal(t, int64(100), (&Product{Price: 5000, SalePrice: &lower}).UnitPrice())
}
