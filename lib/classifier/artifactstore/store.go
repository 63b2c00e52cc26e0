// Package artifactstore publishes and loads classifier artifacts on local
// disk or any S3 compatible object store.
//
// Layout under the store root:
//
//	models/<version>.msgpack
//	models/LATEST
//
// Publishing writes the artifact first and swaps the LATEST pointer last, so
// readers never see a pointer to a missing artifact.
package artifactstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

var (
	ErrBadURL   = errors.New("artifactstore: unsupported store url")
	ErrNoLatest = errors.New("artifactstore: no artifact has been published")
)

// FileStore is a minimal file oriented storage backend.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read returns the whole named file. A missing file returns an error
	// wrapping os.ErrNotExist.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write replaces the named file with the contents of r.
	Write(ctx context.Context, path string, r io.Reader) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// Open picks a backend from a URL:
//
//	file:///var/lib/vox           local directory
//	/var/lib/vox                  local directory
//	s3://bucket/prefix?region=us-east-1&endpoint=http://minio:9000&path_style=true
//
// S3 credentials come from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.
func Open(rawURL string) (FileStore, error) {
	if !strings.Contains(rawURL, "://") {
		return NewLocal(rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadURL, err)
	}

	switch u.Scheme {
	case "file":
		return NewLocal(u.Path)
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("%w: s3 url needs a bucket", ErrBadURL)
		}
		q := u.Query()
		client := NewS3Client(S3Config{
			Region:    q.Get("region"),
			Endpoint:  q.Get("endpoint"),
			PathStyle: q.Get("path_style") == "true",
		})
		return NewS3(client, u.Host, strings.Trim(u.Path, "/")), nil
	}

	return nil, fmt.Errorf("%w: scheme %q", ErrBadURL, u.Scheme)
}
