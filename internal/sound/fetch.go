package sound

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Fetcher opens the raw bytes of an asset.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (io.ReadCloser, error)
}

// LocalOrHTTP fetches http(s) URLs with Client and everything else from disk,
// resolving relative paths against Root.
type LocalOrHTTP struct {
	Root   string
	Client *http.Client
}

func (f LocalOrHTTP) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	if isRemote(location) {
		return f.get(ctx, location)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := location
	if !filepath.IsAbs(p) && f.Root != "" {
		p = filepath.Join(f.Root, p)
	}
	file, err := os.Open(p)
	if err != nil {
		return nil, errors.Wrap(err, "open asset")
	}
	return file, nil
}

func (f LocalOrHTTP) get(ctx context.Context, location string) (io.ReadCloser, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build asset request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch asset")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, errors.Errorf("fetch asset: %s", resp.Status)
	}
	return resp.Body, nil
}

func isRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
