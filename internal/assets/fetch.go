// Package assets fetches character asset bytes from http(s) URLs or from a
// local asset root.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// FetchError reports an asset that could not be loaded. Status is the HTTP
// status, or the equivalent status for local files (404, 403).
type FetchError struct {
	Path   string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("could not load file %s: %d", e.Path, e.Status)
	}
	return fmt.Sprintf("could not load file %s: %v", e.Path, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether p is fetched over http(s).
func IsRemote(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

type Fetcher struct {
	client *http.Client
	fs     afero.Fs
	root   string
}

type Option func(*Fetcher)

func WithClient(client *http.Client) Option {
	return func(f *Fetcher) { f.client = client }
}

func WithFS(fs afero.Fs) Option {
	return func(f *Fetcher) { f.fs = fs }
}

// NewFetcher resolves local paths against root on the OS filesystem unless
// WithFS says otherwise.
func NewFetcher(root string, opts ...Option) *Fetcher {
	res := &Fetcher{
		client: http.DefaultClient,
		fs:     afero.NewOsFs(),
		root:   root,
	}
	if res.root == "" {
		res.root = "."
	}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

// Fetch returns the bytes stored at p. Failures are *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, p string) ([]byte, error) {
	if IsRemote(p) {
		return f.fetchRemote(ctx, p)
	}
	return f.fetchLocal(ctx, p)
}

func (f *Fetcher) fetchRemote(ctx context.Context, p string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p, nil)
	if err != nil {
		return nil, &FetchError{Path: p, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Path: p, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Path: p, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Path: p, Err: err}
	}
	return data, nil
}

func (f *Fetcher) fetchLocal(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Path: p, Err: err}
	}
	clean := path.Clean("/" + strings.TrimPrefix(p, "/"))
	if clean != "/"+strings.TrimPrefix(path.Clean(p), "/") {
		return nil, &FetchError{Path: p, Status: http.StatusForbidden}
	}
	full := path.Join(f.root, clean)
	data, err := afero.ReadFile(f.fs, full)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, &FetchError{Path: p, Status: http.StatusNotFound, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return nil, &FetchError{Path: p, Status: http.StatusForbidden, Err: err}
	case err != nil:
		return nil, &FetchError{Path: p, Err: err}
	}
	return data, nil
}
