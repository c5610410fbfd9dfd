package main

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emberfield/statline/cmd/sink/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := store.NewMemory()
	return newRouter(NewHandler(st), zap.NewNop()), st
}

func TestHandler_Put(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `[{"metric":"http.requests","value":42,"tags":{"route":"/api"},"timestamp":1756036800000}]`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/put", strings.NewReader(body))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/series?metric=http.requests", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("series status = %d", w.Code)
	}

	var entries []store.Entry
	if err := json.Unmarshal(w.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode series: %v", err)
	}
	if len(entries) != 1 || entries[0].Value != 42 || entries[0].Tags["route"] != "/api" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Timestamp.UnixMilli() != 1756036800000 {
		t.Fatalf("timestamp not preserved: %v", entries[0].Timestamp)
	}
}

func TestHandler_Put_Gzip(t *testing.T) {
	r, _ := newTestRouter(t)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(`[{"metric":"m","value":1,"timestamp":1756036800000}]`)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/put", &buf)
	req.Header.Set("Content-Encoding", "gzip")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHandler_Put_BadJSON(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"object not array", `{"metric":"m"}`},
		{"empty metric", `[{"metric":"","value":1}]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/put", strings.NewReader(tc.body))
			r.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestHandler_Metadata(t *testing.T) {
	r, _ := newTestRouter(t)

	body := `[{"Metric":"http.requests","Name":"unit","Value":"requests"},
	          {"Metric":"http.requests","Name":"desc","Value":"Handled requests."}]`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/metadata/put", strings.NewReader(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/metadata", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("metadata status = %d", w.Code)
	}

	var items []store.Metadata
	if err := json.Unmarshal(w.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("want 2 triples, got %d", len(items))
	}
}

func TestHandler_Series_NotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/series?metric=missing", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandler_Ping(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
