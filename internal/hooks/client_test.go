package hooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

const directoryBody = `{
  "records": [
    {
      "fields": {
        "address": "0x00000000000000000000000000000000000000a1",
        "name": "Limit Order Hook",
        "description": "On-chain limit orders over pool ranges",
        "project_url": "https://example.org",
        "audited": true,
        "tags": "orders, automation"
      }
    }
  ]
}`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, CacheTTL: time.Minute}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func TestLookupDecodesRecord(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Fatalf("unexpected auth header %q", got)
		}
		w.Write([]byte(directoryBody))
	}))

	meta, found, err := c.Lookup(context.Background(), "0x00000000000000000000000000000000000000A1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("expected record")
	}
	if meta.Name != "Limit Order Hook" || !meta.Audited {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if len(meta.Tags) != 2 || meta.Tags[0] != "orders" || meta.Tags[1] != "automation" {
		t.Fatalf("unexpected tags %v", meta.Tags)
	}
}

func TestLookupMissingRecord(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"records": []}`))
	}))

	_, found, err := c.Lookup(context.Background(), "0xdead")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Fatal("expected no record")
	}
}

func TestLookupCachesWithinTTL(t *testing.T) {
	var calls atomic.Int64
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(directoryBody))
	}))

	for i := 0; i < 3; i++ {
		if _, _, err := c.Lookup(context.Background(), "0x00000000000000000000000000000000000000a1"); err != nil {
			t.Fatalf("Lookup: %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 upstream call, got %d", got)
	}
}

func TestLookupServesStaleOnUpstreamError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(directoryBody))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL, CacheTTL: time.Nanosecond}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, _, err := c.Lookup(context.Background(), "0xa1"); err != nil {
		t.Fatalf("warm lookup: %v", err)
	}
	time.Sleep(time.Millisecond)
	fail.Store(true)

	meta, found, err := c.Lookup(context.Background(), "0xa1")
	if err != nil {
		t.Fatalf("stale lookup: %v", err)
	}
	if !found || meta.Name != "Limit Order Hook" {
		t.Fatalf("expected stale record, got found=%v meta=%+v", found, meta)
	}
}

func TestLookupUpstreamErrorWithoutCache(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	if _, _, err := c.Lookup(context.Background(), "0xa1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}, nil); err == nil {
		t.Fatal("expected error for empty base url")
	}
}
