package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mixdeck/internal/models"
	"github.com/desertthunder/mixdeck/internal/shared"
)

// Fetcher downloads direct HTTP audio streams.
type Fetcher struct {
	client  *http.Client
	headers map[string]string
	TempDir string // os.TempDir() when empty
	logger  *log.Logger
}

// NewFetcher creates a fetcher. A nil client gets a default with a 30s header timeout.
func NewFetcher(client *http.Client, headers map[string]string, logger *log.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 30 * time.Second,
		}}
	}
	return &Fetcher{client: client, headers: headers, logger: shared.WithLogger(logger)}
}

func (f *Fetcher) request(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrDownloadFailed, method, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s: %s", shared.ErrDownloadFailed, method, url, resp.Status)
	}
	return resp, nil
}

// Open returns the body of url positioned at byte zero.
func (f *Fetcher) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := f.request(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ContentLength asks for the size of url with a HEAD request. It returns -1 when the server does not say.
func (f *Fetcher) ContentLength(ctx context.Context, url string) (int64, error) {
	resp, err := f.request(ctx, http.MethodHead, url)
	if err != nil {
		return -1, err
	}
	resp.Body.Close()

	if resp.ContentLength < 0 {
		return -1, nil
	}
	return resp.ContentLength, nil
}

// Download copies stream into a new temp file named after its extension and returns the path.
func (f *Fetcher) Download(ctx context.Context, song models.Song, stream models.AudioStreamInfo, progress models.ProgressFunc) (string, error) {
	progress.Emit(models.StartingProgress(&song))

	fail := func(downloaded int64, err error) (string, error) {
		progress.Emit(models.FailedProgress(&song, downloaded, err))
		return "", err
	}

	resp, err := f.request(ctx, http.MethodGet, stream.URL)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	total := max(resp.ContentLength, 0)

	dir := f.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	out, err := os.CreateTemp(dir, "mixdeck-*."+models.NormalizeExtension(stream.Extension))
	if err != nil {
		return fail(0, fmt.Errorf("failed to create temp file: %w", err))
	}

	w := &countingWriter{w: out, onWrite: func(n int64) {
		progress.Emit(models.DownloadingProgress(&song, n, total))
	}}

	f.logger.Debug("downloading stream", "url", stream.URL, "output", out.Name(), "total", total)
	_, copyErr := io.Copy(w, resp.Body)
	closeErr := out.Close()

	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		removeQuietly(out.Name())
		if ctx.Err() != nil {
			return fail(w.n, ctx.Err())
		}
		return fail(w.n, fmt.Errorf("%w: %v", shared.ErrDownloadFailed, copyErr))
	}

	if total == 0 {
		total = w.n
	}
	progress.Emit(models.CompletedProgress(&song, w.n, total))
	return out.Name(), nil
}

type countingWriter struct {
	w       io.Writer
	n       int64
	onWrite func(int64)
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if n > 0 && c.onWrite != nil {
		c.onWrite(c.n)
	}
	return n, err
}
