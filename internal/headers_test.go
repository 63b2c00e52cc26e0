package internal

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func echoRealIP() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.Header.Get("X-Real-Ip"))
	})
}

func TestXForwardedForToXRealIP(t *testing.T) {
	for _, tt := range []struct {
		name   string
		xff    string
		realIP string
		want   string
	}{
		{
			name: "first public address wins",
			xff:  "10.0.0.1, 8.8.8.8, 1.1.1.1",
			want: "8.8.8.8",
		},
		{
			name:   "existing header is kept",
			xff:    "8.8.8.8",
			realIP: "9.9.9.9",
			want:   "9.9.9.9",
		},
		{
			name: "no header",
			want: "",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-Ip", tt.realIP)
			}

			rec := httptest.NewRecorder()
			XForwardedForToXRealIP(echoRealIP()).ServeHTTP(rec, req)

			if got := rec.Body.String(); got != tt.want {
				t.Errorf("X-Real-Ip = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRemoteXRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:51234"

	rec := httptest.NewRecorder()
	RemoteXRealIP(true, "tcp", echoRealIP()).ServeHTTP(rec, req)

	if got := rec.Body.String(); got != "203.0.113.7" {
		t.Errorf("X-Real-Ip = %q, want 203.0.113.7", got)
	}

	rec = httptest.NewRecorder()
	RemoteXRealIP(true, "unix", echoRealIP()).ServeHTTP(rec, req)

	if got := rec.Body.String(); got != "127.0.0.1" {
		t.Errorf("X-Real-Ip over unix socket = %q, want 127.0.0.1", got)
	}
}

func TestNoStoreCache(t *testing.T) {
	rec := httptest.NewRecorder()
	NoStoreCache(echoRealIP()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

func TestGzipMiddleware(t *testing.T) {
	h := GzipMiddleware(1, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"model_loaded":true}`)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatal("response was not gzip encoded")
	}

	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}

	body, err := io.ReadAll(gz)
	if err != nil {
		t.Fatal(err)
	}

	if string(body) != `{"model_loaded":true}` {
		t.Errorf("wrong body: %q", body)
	}
}
