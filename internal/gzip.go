package internal

import (
	"compress/gzip"
	"net/http"
	"strings"
)

// GzipMiddleware compresses responses for clients that accept gzip. Levels
// outside the range accepted by compress/gzip fall back to the default.
func GzipMiddleware(level int, next http.Handler) http.Handler {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")

		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		gz, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			panic(err)
		}
		defer gz.Close()

		next.ServeHTTP(gzipResponseWriter{ResponseWriter: w, sink: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	sink *gzip.Writer
}

func (w gzipResponseWriter) Write(b []byte) (int, error) {
	return w.sink.Write(b)
}
