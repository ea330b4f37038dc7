package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/post_1/comments" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("access_token") != "tok" {
			t.Errorf("missing access token")
		}

		resp := map[string]any{
			"data": []map[string]any{
				{"id": "c1", "message": "B01", "from": map[string]string{"id": "u1", "name": "Ani"},
					"created_time": "2024-06-01T20:00:01Z"},
			},
		}
		if r.URL.Query().Get("after") == "" {
			resp["paging"] = map[string]any{
				"cursors": map[string]string{"after": "cur1"},
				"next":    "https://example.test/next",
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")

	p, err := c.FetchPage(context.Background(), "post_1", "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(p.Comments) != 1 || p.Comments[0].ID != "c1" || p.Comments[0].AuthorName != "Ani" {
		t.Fatalf("bad page: %+v", p)
	}
	if p.NextCursor != "cur1" {
		t.Fatalf("next cursor = %q", p.NextCursor)
	}

	// last page: cursors.after present but no paging.next
	p, err = c.FetchPage(context.Background(), "post_1", "cur1")
	if err != nil {
		t.Fatalf("fetch last: %v", err)
	}
	if p.NextCursor != "" {
		t.Fatalf("last page should have empty cursor, got %q", p.NextCursor)
	}
}

func TestClientFetchPageUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	if _, err := c.FetchPage(context.Background(), "post_1", ""); err == nil {
		t.Fatalf("want error on non-200")
	}
}
