// Package repoindex fetches and caches the package index published by a
// repository: the catalog of available (name, version, pkg-rev) tuples and
// their manifests, plus the archive bytes for any one of them.
package repoindex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Source names one repository: either an http(s) base URL or a local
// directory path.
type Source struct {
	// Path is the repository's base location: "http://", "https://", or a
	// filesystem path.
	Path string
}

func (s Source) remote() bool {
	return strings.HasPrefix(s.Path, "http://") || strings.HasPrefix(s.Path, "https://")
}

// ErrNotFound is returned by Reader when the repository has no such file.
type ErrNotFound struct{ url *url.URL }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("%v: HTTP status 404", e.url) }

type gzipReader struct {
	body io.ReadCloser
	zr   *gzip.Reader
}

func (r *gzipReader) Read(p []byte) (int, error) { return r.zr.Read(p) }

func (r *gzipReader) Close() error {
	if err := r.zr.Close(); err != nil {
		return err
	}
	return r.body.Close()
}

type closeFuncReadCloser struct {
	reader    io.Reader
	closeFunc func() error
}

func (c *closeFuncReadCloser) Read(p []byte) (int, error) { return c.reader.Read(p) }
func (c *closeFuncReadCloser) Close() error               { return c.closeFunc() }

var httpClient = &http.Client{Transport: &http.Transport{
	MaxIdleConnsPerHost: 10,
	DisableCompression:  true,
}}

func cacheFn(cache bool, src Source, fn string) string {
	if !cache {
		return ""
	}
	ucd, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(ucd, "cppack", strings.ReplaceAll(src.Path, "/", "_"), fn)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ""
	}
	return path
}

// Reader opens fn (relative to src's base) for reading, using conditional
// GET against a local cache directory when src is remote so that unchanged
// repository index files are not re-downloaded on every invocation.
func Reader(ctx context.Context, src Source, fn string, cache bool) (io.ReadCloser, error) {
	if !src.remote() {
		return os.Open(filepath.Join(src.Path, fn))
	}

	cfn := cacheFn(cache, src, fn)
	var ifModifiedSince time.Time
	if cfn != "" {
		if st, err := os.Stat(cfn); err == nil {
			ifModifiedSince = st.ModTime()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Path+"/"+fn, nil)
	if err != nil {
		return nil, err
	}
	if !ifModifiedSince.IsZero() {
		req.Header.Set("If-Modified-Since", ifModifiedSince.Format(http.TimeFormat))
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if cfn != "" && resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		return os.Open(cfn)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, &ErrNotFound{url: req.URL}
		}
		return nil, fmt.Errorf("%s: HTTP status %v", req.URL, resp.Status)
	}

	rdc := resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		rdc = &gzipReader{body: resp.Body, zr: zr}
	}

	var cacheFile *os.File
	if cfn != "" {
		cacheFile, _ = os.Create(cfn)
	}
	var w io.Writer = io.Discard
	if cacheFile != nil {
		w = cacheFile
	}
	mtime := time.Now()
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := time.Parse(http.TimeFormat, lm); err == nil {
			mtime = t
		}
	}
	return &closeFuncReadCloser{
		reader: io.TeeReader(rdc, w),
		closeFunc: func() error {
			if err := rdc.Close(); err != nil {
				return err
			}
			if cacheFile != nil {
				if err := cacheFile.Close(); err != nil {
					return err
				}
				return os.Chtimes(cfn, mtime, mtime)
			}
			return nil
		},
	}, nil
}
