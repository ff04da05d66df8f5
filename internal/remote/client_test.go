package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestAPI(t *testing.T, pageHandler http.HandlerFunc) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var tokenCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds["client_id"] != "id" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		tokenCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/listings/", pageHandler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &tokenCalls
}

func TestClientGetPageSendsBearerToken(t *testing.T) {
	t.Parallel()

	server, tokenCalls := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok-1")
		}
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("page = %q, want 2", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":      []map[string]any{{"metadata": map[string]any{"stockId": "S1"}}},
			"page":       2,
			"totalPages": 3,
		})
	})

	client := NewClient(server.URL, "id", "secret", server.Client())
	page, err := client.GetPage(context.Background(), "dealer-1", 2, 10)
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if len(page.Items) != 1 || page.TotalPages != 3 {
		t.Fatalf("page = %+v, want 1 item, 3 total pages", page)
	}
	if got := page.Items[0].Str("metadata", "stockId"); got != "S1" {
		t.Fatalf("stockId = %q, want S1", got)
	}

	// Second call reuses the cached token.
	if _, err := client.GetPage(context.Background(), "dealer-1", 2, 10); err != nil {
		t.Fatalf("GetPage() second call error = %v", err)
	}
	if tokenCalls.Load() != 1 {
		t.Fatalf("token calls = %d, want 1", tokenCalls.Load())
	}
}

func TestClientReauthenticatesOn401(t *testing.T) {
	t.Parallel()

	var pageCalls atomic.Int64
	server, tokenCalls := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if pageCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{}})
	})

	client := NewClient(server.URL, "id", "secret", server.Client())
	if _, err := client.GetPage(context.Background(), "dealer-1", 1, 10); err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if pageCalls.Load() != 2 {
		t.Fatalf("page calls = %d, want 2 (retry after re-auth)", pageCalls.Load())
	}
	if tokenCalls.Load() != 2 {
		t.Fatalf("token calls = %d, want 2", tokenCalls.Load())
	}
}

func TestClientAuthFailureIsDistinguishable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "id", "bad-secret", server.Client())
	_, err := client.GetPage(context.Background(), "dealer-1", 1, 10)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("GetPage() error = %v, want ErrAuth", err)
	}
}

func TestClientMissingResultSetIsError(t *testing.T) {
	t.Parallel()

	server, _ := newTestAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"page": 1, "totalPages": 1})
	})

	client := NewClient(server.URL, "id", "secret", server.Client())
	_, err := client.GetPage(context.Background(), "dealer-1", 1, 10)
	if err == nil {
		t.Fatalf("GetPage() error = nil, want missing result set error")
	}
	if errors.Is(err, ErrAuth) {
		t.Fatalf("GetPage() error = %v, should not be ErrAuth", err)
	}
}

func TestClientEmptyItemsIsNotAnError(t *testing.T) {
	t.Parallel()

	server, _ := newTestAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{}, "totalPages": 1})
	})

	client := NewClient(server.URL, "id", "secret", server.Client())
	page, err := client.GetPage(context.Background(), "dealer-1", 1, 10)
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("items = %d, want 0", len(page.Items))
	}
}
