package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD request, got %s", r.Method)
		}
		switch r.URL.Path {
		case "/sized":
			w.Header().Set("Content-Length", strconv.Itoa(2048))
			w.WriteHeader(http.StatusOK)
		case "/unsized":
			// HEAD responses carry no Content-Length unless set explicitly
			w.WriteHeader(http.StatusOK)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient()
	ctx := context.Background()

	t.Run("sized resource", func(t *testing.T) {
		size, ok, err := client.ContentLength(ctx, srv.URL+"/sized")
		if err != nil {
			t.Fatalf("ContentLength failed: %v", err)
		}
		if !ok || size != 2048 {
			t.Errorf("expected (2048, true), got (%d, %v)", size, ok)
		}
	})

	t.Run("absent length is not an error", func(t *testing.T) {
		size, ok, err := client.ContentLength(ctx, srv.URL+"/unsized")
		if err != nil {
			t.Fatalf("ContentLength failed: %v", err)
		}
		if ok || size != 0 {
			t.Errorf("expected (0, false), got (%d, %v)", size, ok)
		}
	})

	t.Run("non-2xx status is an error", func(t *testing.T) {
		if _, _, err := client.ContentLength(ctx, srv.URL+"/missing"); err == nil {
			t.Error("expected error for 404 response")
		}
	})

	t.Run("unreachable host is an error", func(t *testing.T) {
		c := NewClient(WithTimeout(100 * time.Millisecond))
		if _, _, err := c.ContentLength(ctx, "http://127.0.0.1:1/nope"); err == nil {
			t.Error("expected error for unreachable host")
		}
	})

	t.Run("invalid url is an error", func(t *testing.T) {
		if _, _, err := client.ContentLength(ctx, "http://bad url with spaces"); err == nil {
			t.Error("expected error for malformed URL")
		}
	})
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient()
	if c.timeout != DefaultTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultTimeout, c.timeout)
	}

	custom := &http.Client{}
	c = NewClient(WithTimeout(time.Second), WithHTTPClient(custom))
	if c.timeout != time.Second {
		t.Errorf("expected 1s timeout, got %v", c.timeout)
	}
	if c.http != custom {
		t.Error("expected injected HTTP client")
	}
}
