package gutenberg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"litlens/internal/apperr"
	"litlens/internal/cache"
)

func newTestClient(t *testing.T, baseURL string, maxLen int) (*Client, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })

	c := NewClient(Config{
		BaseURL:    baseURL,
		MaxTextLen: maxLen,
		TextTTL:    time.Minute,
	}, cache.NewSafeCache(store, time.Minute))
	return c, store
}

func TestFetchTextEmptyID(t *testing.T) {
	c, _ := newTestClient(t, "http://example.invalid", 5000)

	for _, id := range []string{"", "   ", "\t\n"} {
		_, err := c.FetchText(context.Background(), id)
		if !apperr.IsKind(err, apperr.KindValidation) {
			t.Errorf("FetchText(%q): expected invalid-identifier error, got %v", id, err)
		}
	}
}

func TestFetchTextSuccessAndURLShape(t *testing.T) {
	var gotPath, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("It is a truth universally acknowledged..."))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 5000)

	text, err := c.FetchText(context.Background(), " 1342 ")
	if err != nil {
		t.Fatalf("FetchText: %v", err)
	}
	if gotPath != "/1342/1342-0.txt" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUA == "" {
		t.Errorf("expected a User-Agent header")
	}
	if !strings.HasPrefix(text, "It is a truth") {
		t.Errorf("unexpected text %q", text)
	}
}

func TestFetchTextTruncation(t *testing.T) {
	long := strings.Repeat("a", 6000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(long))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 5000)

	text, err := c.FetchText(context.Background(), "1342")
	if err != nil {
		t.Fatalf("FetchText: %v", err)
	}
	if len(text) != 5003 {
		t.Fatalf("truncated length = %d, want 5003", len(text))
	}
	if text[:5000] != long[:5000] {
		t.Fatalf("truncation changed content")
	}
	if !strings.HasSuffix(text, "...") {
		t.Fatalf("expected truncation marker suffix")
	}
}

func TestFetchTextCachesTruncatedText(t *testing.T) {
	var calls int32
	long := strings.Repeat("b", 6000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(long))
	}))
	defer srv.Close()

	c, store := newTestClient(t, srv.URL, 5000)
	ctx := context.Background()

	first, err := c.FetchText(ctx, "1342")
	if err != nil {
		t.Fatalf("FetchText: %v", err)
	}

	// Cache must hold the truncated text, not the raw payload.
	cached, hit, _ := store.Get(ctx, cache.TextKey("1342"))
	if !hit {
		t.Fatalf("expected text in cache")
	}
	if len(cached) != 5003 {
		t.Fatalf("cached length = %d, want 5003", len(cached))
	}

	second, err := c.FetchText(ctx, "1342")
	if err != nil {
		t.Fatalf("second FetchText: %v", err)
	}
	if second != first {
		t.Fatalf("cached and live paths diverge")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected 1 upstream call, got %d", n)
	}
}

func TestFetchTextNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 5000)

	_, err := c.FetchText(context.Background(), "1342")
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if apperr.Message(err) != "Book with ID 1342 not found" {
		t.Fatalf("message = %q", apperr.Message(err))
	}
}

func TestFetchTextUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 5000)

	_, err := c.FetchText(context.Background(), "1342")
	if !apperr.IsKind(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if !strings.Contains(apperr.Message(err), "503") {
		t.Fatalf("expected status code in message, got %q", apperr.Message(err))
	}
}

func TestFetchTextEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("   \n "))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, 5000)

	_, err := c.FetchText(context.Background(), "1342")
	if !apperr.IsKind(err, apperr.KindMalformedResponse) {
		t.Fatalf("expected malformed-response error, got %v", err)
	}
}

func TestFetchTextTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	store := cache.NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })
	c := NewClient(Config{
		BaseURL:      srv.URL,
		FetchTimeout: 50 * time.Millisecond,
		TextTTL:      time.Minute,
	}, cache.NewSafeCache(store, time.Minute))

	_, err := c.FetchText(context.Background(), "1342")
	if !apperr.IsKind(err, apperr.KindTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestFetchTextConnectivity(t *testing.T) {
	// Closed server: dial fails immediately.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c, _ := newTestClient(t, srv.URL, 5000)

	_, err := c.FetchText(context.Background(), "1342")
	if !apperr.IsKind(err, apperr.KindConnectivity) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
}
