package graph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPClientGetDocument(t *testing.T) {
	t.Log("\n🔍 Testing HTTP client document fetching...")

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/organization":
			w.Write([]byte(`{"value": [{"displayName": "Contoso"}]}`))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token", 5*time.Second)
	ctx := context.Background()

	doc, err := client.GetDocument(ctx, "organization")
	if err != nil {
		t.Fatalf("❌ GetDocument failed: %v", err)
	}
	if doc == nil || len(doc.Items()) != 1 {
		t.Fatal("❌ Expected one organization entry")
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("❌ Authorization header mismatch: %q", gotAuth)
	}

	for _, endpoint := range []string{"missing", "empty"} {
		doc, err = client.GetDocument(ctx, endpoint)
		if err != nil || doc != nil {
			t.Errorf("❌ %s should yield (nil, nil), got (%v, %v)", endpoint, doc, err)
		}
	}

	_, err = client.GetDocument(ctx, "forbidden")
	if err == nil {
		t.Fatal("❌ Expected an error for 403")
	}
	if !strings.Contains(err.Error(), "403 Forbidden") {
		t.Errorf("❌ Error should carry the status text: %v", err)
	}

	t.Log("\n✅ HTTP client document fetching test passed")
}

func TestHTTPClientAbsoluteCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users" || r.URL.RawQuery != "$skiptoken=abc" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"value": [{"id": "u1"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "token", 5*time.Second)

	// Pagination cursors arrive as absolute URLs and must not be re-prefixed.
	docs, err := client.GetCollection(context.Background(), srv.URL+"/users?$skiptoken=abc")
	if err != nil {
		t.Fatalf("GetCollection on absolute cursor failed: %v", err)
	}
	if len(docs) != 1 || docs[0].String("id") != "u1" {
		t.Errorf("unexpected collection: %v", docs)
	}
}

func TestHTTPClientPermissions(t *testing.T) {
	t.Log("\n🔍 Testing permission discovery and caching...")

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/grantedPermissions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		calls.Add(1)
		w.Write([]byte(`{"value": [{"value": "User.Read.All"}, {"value": "Policy.Read.All"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "token", 5*time.Second)
	ctx := context.Background()

	perms, err := client.GrantedPermissions(ctx)
	if err != nil {
		t.Fatalf("❌ GrantedPermissions failed: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("❌ Expected 2 permissions, got %d", len(perms))
	}

	if !client.HasPermission(ctx, "user.read.all") {
		t.Error("❌ HasPermission should match case-insensitively")
	}
	if client.HasPermission(ctx, "Directory.Write.All") {
		t.Error("❌ HasPermission should reject ungranted scopes")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("❌ Grants should be fetched once, got %d calls", got)
	}

	t.Log("\n✅ Permission discovery test passed")
}
