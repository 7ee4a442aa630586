// Package fetcher downloads reference grid archives from HTTP(S), FTP, or local mirrors.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	// The destination only appears once the transfer completed.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Options configures the scheme router returned by New.
type Options struct {
	HTTP    HTTPOptions
	FTP     FTPOptions
	Breaker BreakerOptions
}

// Router dispatches on the URL scheme: http and https, ftp, and file (or a bare path).
// Remote hosts sit behind a circuit breaker each.
type Router struct {
	http *HTTPFetcher
	ftp  *FTPFetcher
	file *FileFetcher

	breakerOpts BreakerOptions
	mu          sync.Mutex
	breakers    map[string]*breaker
}

// New creates a Router with the given options.
func New(opts Options) *Router {
	return &Router{
		http:        NewHTTPFetcher(opts.HTTP),
		ftp:         NewFTPFetcher(opts.FTP),
		file:        &FileFetcher{},
		breakerOpts: opts.Breaker,
		breakers:    make(map[string]*breaker),
	}
}

// pick returns the fetcher for rawURL and the breaker of its host (nil for local files).
func (r *Router) pick(rawURL string) (Fetcher, *breaker, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, "", eris.Wrapf(err, "fetcher: parse %q", rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return r.http, r.breakerFor(u.Host), u.Host, nil
	case "ftp":
		return r.ftp, r.breakerFor(u.Host), u.Host, nil
	case "file", "":
		return r.file, nil, "", nil
	default:
		return nil, nil, "", eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

func (r *Router) breakerFor(host string) *breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[host]
	if !ok {
		b = newBreaker(r.breakerOpts)
		r.breakers[host] = b
	}
	return b
}

// Download implements Fetcher.
func (r *Router) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, b, host, err := r.pick(rawURL)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return f.Download(ctx, rawURL)
	}
	return guarded(b, host, func() (io.ReadCloser, error) { return f.Download(ctx, rawURL) })
}

// DownloadToFile implements Fetcher.
func (r *Router) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	f, b, host, err := r.pick(rawURL)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return f.DownloadToFile(ctx, rawURL, path)
	}
	return guarded(b, host, func() (int64, error) { return f.DownloadToFile(ctx, rawURL, path) })
}

// JoinURL appends name to a mirror base URL or directory.
func JoinURL(base, name string) string {
	if base == "" {
		return name
	}
	return strings.TrimRight(base, "/") + "/" + name
}

// FileFetcher copies from a local mirror directory.
type FileFetcher struct{}

func localPath(rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "file:") {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "parse file url")
	}
	if u.Path == "" {
		return "", eris.New("empty path in file url")
	}
	return filepath.FromSlash(u.Path), nil
}

// Download opens the local file.
func (f *FileFetcher) Download(_ context.Context, rawURL string) (io.ReadCloser, error) {
	path, err := localPath(rawURL)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open mirror file")
	}
	return file, nil
}

// DownloadToFile copies the local file to path.
func (f *FileFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	rc, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck
	return writeFile(path, rc)
}

// writeFile streams r into a temp file next to path and renames it into place, so an
// interrupted transfer never leaves a partial archive under the final name.
func writeFile(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrap(err, "create parent directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".part-*")
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return n, eris.Wrap(err, "write file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return n, eris.Wrap(err, "close file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return n, eris.Wrap(err, "rename file")
	}
	return n, nil
}
