package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sethvargo/go-retry"
	"github.com/spf13/afero"

	"github.com/ppiankov/poseprep/internal/logger"
	"github.com/ppiankov/poseprep/internal/model"
	"github.com/ppiankov/poseprep/internal/util"
	"github.com/ppiankov/poseprep/internal/worker"
)

const maxAttempts = 3

var (
	// ErrDisallowed is returned when robots.txt forbids the download
	ErrDisallowed = errors.New("disallowed by robots.txt")
	// ErrTooLarge is returned when the body exceeds the configured limit
	ErrTooLarge = errors.New("response exceeds size limit")
)

// StatusError is a non-2xx response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// Retryable reports whether the server may succeed on a later attempt
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Fetcher downloads dataset archives
type Fetcher struct {
	httpClient   *http.Client
	fs           afero.Fs
	userAgent    string
	maxBytes     int64
	limiter      *worker.Limiter
	robots       *util.RobotsChecker
	showProgress bool
	backoffBase  time.Duration
}

// NewFetcher creates a fetcher from the HTTP and rate limiting config
func NewFetcher(cfg model.HTTPConfig, rl model.RateLimitConfig, fs afero.Fs) *Fetcher {
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy: util.ProxyFunc(cfg),
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient:   client,
		fs:           fs,
		userAgent:    cfg.UserAgent,
		maxBytes:     cfg.MaxBodyBytes,
		limiter:      worker.NewLimiter(rl),
		showProgress: cfg.ShowProgress,
		backoffBase:  time.Second,
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(cfg.UserAgent, client, cfg.Timeout)
	}
	return f
}

// Download fetches rawURL into dest, retrying transient failures.
// The file only appears at dest once the body has been fully written.
func (f *Fetcher) Download(ctx context.Context, rawURL, dest string) error {
	log := logger.FromContext(ctx)

	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, rawURL)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
	}

	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(f.backoffBase))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := f.fetchOnce(ctx, rawURL, dest)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			log.Warn("download failed, retrying", "url", rawURL, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL, dest string) error {
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, resp.ContentLength, f.maxBytes)
	}

	if err := f.fs.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	part := dest + ".part"
	out, err := f.fs.Create(part)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	var w io.Writer = out
	if f.showProgress {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetDescription("downloading "+filepath.Base(dest)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
		w = io.MultiWriter(out, bar)
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	n, err := io.Copy(w, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && f.maxBytes > 0 && n > f.maxBytes {
		err = fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	if err != nil {
		_ = f.fs.Remove(part)
		return fmt.Errorf("read body: %w", err)
	}

	if err := f.fs.Rename(part, dest); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// isRetryable reports whether err is worth another attempt: 5xx, 429 and
// network failures are, everything else is not
func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
