// Package importer acquires specification documents from places other than
// the local filesystem: remote URLs and git repositories. It only fetches
// bytes; format detection and parsing stay in the registry.
package importer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/apiscribe/apiscribe/internal/config"
)

// Fetcher downloads specification documents over HTTP. Requests share a rate
// limiter so importing a list of URLs from the same host stays polite.
type Fetcher struct {
	log     *zap.Logger
	client  *http.Client
	limiter *rate.Limiter
	maxSize int64
}

func NewFetcher(cfg config.ImporterConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 2
	}
	maxSize := cfg.MaxFetchBytes
	if maxSize <= 0 {
		maxSize = 16 << 20
	}
	return &Fetcher{
		log:     logger.Named("importer.fetch"),
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		maxSize: maxSize,
	}
}

// Fetch downloads one document, honoring the rate limiter and the size cap.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build fetch request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml, text/plain, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(data)) > f.maxSize {
		return "", fmt.Errorf("fetch %s: document exceeds %d byte limit", url, f.maxSize)
	}
	f.log.Debug("Fetched document.", zap.String("url", url), zap.Int("bytes", len(data)))
	return string(data), nil
}

// Source is one acquired document together with where it came from.
type Source struct {
	Name    string
	Content string
}

// FetchAll downloads a set of URLs concurrently. Order of the result matches
// the input; the first failure cancels the remaining fetches.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) ([]Source, error) {
	sources := make([]Source, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i, url := range urls {
		g.Go(func() error {
			content, err := f.Fetch(gctx, url)
			if err != nil {
				return err
			}
			sources[i] = Source{Name: url, Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}

// ReadFiles loads local documents concurrently, mirroring FetchAll for the
// multi-file import path.
func ReadFiles(ctx context.Context, paths []string) ([]Source, error) {
	sources := make([]Source, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			sources[i] = Source{Name: path, Content: string(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}
