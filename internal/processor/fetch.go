package processor

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/conneroisu/mpwizard/internal/errors"
)

// maxFragmentSize bounds a fetched fragment file.
const maxFragmentSize = 4 << 20

// Fetcher loads the text of an external fragment file.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (string, error)
}

// HTTPFetcher loads fragment files with a GET against
// {BaseURL}/{LibraryDir}/{name}, adding a cache-defeating query parameter.
type HTTPFetcher struct {
	BaseURL    string
	LibraryDir string
	Client     *http.Client

	now func() time.Time
}

// NewHTTPFetcher creates a fetcher whose requests time out after timeout.
// A zero timeout leaves requests unbounded.
func NewHTTPFetcher(baseURL, libraryDir string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL:    baseURL,
		LibraryDir: libraryDir,
		Client:     &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// URL returns the request URL for name.
func (f *HTTPFetcher) URL(name string) (string, error) {
	u, err := url.JoinPath(f.BaseURL, f.LibraryDir, name)
	if err != nil {
		return "", err
	}

	now := time.Now
	if f.now != nil {
		now = f.now
	}

	return u + "?v=" + strconv.FormatInt(now().UnixNano(), 10), nil
}

// Fetch implements Fetcher. Any non-2xx status is a failure.
func (f *HTTPFetcher) Fetch(ctx context.Context, name string) (string, error) {
	target, err := f.URL(name)
	if err != nil {
		return "", fetchError("build URL for "+name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fetchError("build request for "+name, err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fetchError("GET "+name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fetchError(fmt.Sprintf("GET %s: %s", name, resp.Status), nil).
			WithContext("status", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFragmentSize))
	if err != nil {
		return "", fetchError("read "+name, err)
	}

	return string(body), nil
}

// FSFetcher loads fragment files from a file system, such as the embedded
// library or a directory given on the command line.
type FSFetcher struct {
	FS fs.FS
}

// Fetch implements Fetcher.
func (f FSFetcher) Fetch(_ context.Context, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", fetchError(fmt.Sprintf("invalid fragment file name %q", name), nil)
	}

	data, err := fs.ReadFile(f.FS, name)
	if err != nil {
		return "", fetchError("read "+name, err)
	}

	return string(data), nil
}

func fetchError(message string, cause error) *errors.MPError {
	return errors.NewFetchError(errors.ErrCodeFetchFailed, message, cause).WithComponent("fetcher")
}
