package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `{
	"services": [{"index": 0, "id": "svc1", "fields": {"title": "Haircut", "price": 25.0}}],
	"free_dates": {"2024-06-01": ["09:00:00", "10:00:00"]}
}`

func TestFileSourceLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	cat, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, cat.Services, 1)
	assert.Equal(t, "2024-06-01", cat.FreeSlots[0].Date)
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog: read")
}

func TestHTTPSourceLoad(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleCatalog))
	}))
	defer srv.Close()

	cat, err := NewHTTPSource(srv.URL, nil).WithHTTPClient(srv.Client()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Haircut", cat.Services[0].Title)
	assert.True(t, cat.HasTime("2024-06-01", "09:00:00"))
}

func TestHTTPSourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, nil).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestHTTPSourceMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"services": "nope"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, nil).Load(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestStaticSourceValidates(t *testing.T) {
	_, err := StaticSource{}.Load(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	cat, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)
	got, err := StaticSource{Catalog: cat}.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, cat, got)
}
