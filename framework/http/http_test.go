package http_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/km-arc/go-beans/framework/container"
	gohttp "github.com/km-arc/go-beans/framework/http"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

// ── Response ──────────────────────────────────────────────────────────────────

func TestResponse_Success(t *testing.T) {
	rr := httptest.NewRecorder()
	gohttp.NewResponse(rr).Success(map[string]any{"id": 1})

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	body := decode(t, rr)
	if _, ok := body["data"]; !ok {
		t.Error("expected a data envelope")
	}
}

func TestResponse_DefaultMessages(t *testing.T) {
	rr := httptest.NewRecorder()
	gohttp.NewResponse(rr).NotFound()
	if got := decode(t, rr)["message"]; got != "Not found." {
		t.Errorf("message: got %v", got)
	}

	rr = httptest.NewRecorder()
	gohttp.NewResponse(rr).BadRequest("price required")
	if rr.Code != http.StatusBadRequest || decode(t, rr)["message"] != "price required" {
		t.Errorf("BadRequest: got %d", rr.Code)
	}
}

func TestResponse_Fail(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: orderService", container.ErrNoSuchBeanDefinition), http.StatusNotFound},
		{fmt.Errorf("%w: request", container.ErrScopeNotActive), http.StatusServiceUnavailable},
		{container.ErrStopped, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rr := httptest.NewRecorder()
			gohttp.NewResponse(rr).Fail(tt.err)
			if rr.Code != tt.want {
				t.Errorf("got %d want %d", rr.Code, tt.want)
			}
		})
	}
}

// ── Request ───────────────────────────────────────────────────────────────────

func TestRequest_Query(t *testing.T) {
	req := gohttp.NewRequest(httptest.NewRequest(http.MethodGet, "/orders?member=1&price=abc", nil))

	if got := req.Query("member"); got != "1" {
		t.Errorf("Query(member): got %q", got)
	}
	if got := req.Query("item", "book"); got != "book" {
		t.Errorf("Query fallback: got %q", got)
	}
	if got := req.QueryInt("price", 7); got != 7 {
		t.Errorf("QueryInt on malformed value: got %d want 7", got)
	}
}

func TestRequest_BindJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"kim"}`))
	var body struct {
		Name string `json:"name"`
	}
	if err := gohttp.NewRequest(r).BindJSON(&body); err != nil {
		t.Fatal(err)
	}
	if body.Name != "kim" {
		t.Errorf("got %q want kim", body.Name)
	}

	empty := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := gohttp.NewRequest(empty).BindJSON(&body); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestRequest_Header(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "abc")
	if got := gohttp.NewRequest(r).Header("X-Request-ID"); got != "abc" {
		t.Errorf("got %q", got)
	}
}
