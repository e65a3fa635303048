// Package browser implements the Stealth Browser Session (component A):
// a reusable headless-Chrome session, driven over the DevTools Protocol
// via chromedp, that survives anti-bot interstitials across the many
// sequential page loads one bill's document trail requires: stealth
// property overrides, human-like randomized delays, and retry with
// exponential backoff, all expressed as native CDP calls via chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

var (
	ErrBotChallengeDetected = errors.New("browser: bot challenge detected")
	ErrNavigationTimeout    = errors.New("browser: navigation timeout")
	ErrDownloadTimeout      = errors.New("browser: download timeout")
)

const (
	navigationTimeout = 30 * time.Second
	downloadTimeout   = 60 * time.Second
	basePortOffset    = 9222
	portRange         = 1000

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

var challengeMarkers = []string{"cloudflare", "attention required", "checking your browser"}

// stealthInitScript overrides the properties that naive headless-
// detection scripts probe for, matching the JS create_stealth_driver
// injects via execute_script after launch.
const stealthInitScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
window.chrome = window.chrome || { runtime: {} };
`

// Port deterministically derives a per-job debugging port so concurrent
// jobs never collide: port = 9222 + hash(jobID) mod 1000.
func Port(jobID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(jobID))
	return basePortOffset + int(h.Sum32()%portRange)
}

// Session owns one headless Chrome instance for the lifetime of a single
// bill's pipeline run. It is never shared across jobs.
type Session struct {
	downloadDir string
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancelBrow  context.CancelFunc
	firstLoad   map[string]bool
}

// Open acquires a browser pinned to a debugging port derived from jobID,
// with downloads routed to downloadDir.
func Open(ctx context.Context, downloadDir, jobID string) (*Session, error) {
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("browser: create download dir: %w", err)
	}

	port := Port(jobID)
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("remote-debugging-port", fmt.Sprintf("%d", port)),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrow := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx,
		chromedp.Evaluate(stealthInitScript, nil),
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir),
	); err != nil {
		cancelBrow()
		cancelAlloc()
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	return &Session{
		downloadDir: downloadDir,
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		browserCtx:  browserCtx,
		cancelBrow:  cancelBrow,
		firstLoad:   make(map[string]bool),
	}, nil
}

// Get navigates to url and returns its rendered page source. The source
// is read once after navigation: if it contains a challenge marker, Get
// returns ErrBotChallengeDetected without waiting for the challenge to
// clear; if navigation does not finish within navigationTimeout, it
// returns ErrNavigationTimeout.
func (s *Session) Get(ctx context.Context, url string) (string, error) {
	s.waitHumanDelay(url)

	navCtx, cancel := context.WithTimeout(s.browserCtx, navigationTimeout)
	defer cancel()

	var html string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.Evaluate(stealthInitScript, nil),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return "", ErrNavigationTimeout
		}
		return "", fmt.Errorf("browser: navigate %s: %w", url, err)
	}

	lower := strings.ToLower(html)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return "", ErrBotChallengeDetected
		}
	}
	return html, nil
}

// GetWithRetry wraps Get with exponential backoff base*2^k + jitter, up
// to 3 attempts.
func (s *Session) GetWithRetry(ctx context.Context, url string) (string, error) {
	return retry(ctx, func() (string, error) { return s.Get(ctx, url) })
}

// Download clears the download directory, clicks through to url, and
// polls for a fully-written file with expectedExt.
func (s *Session) Download(ctx context.Context, url, expectedExt string) (string, error) {
	if err := clearDir(s.downloadDir); err != nil {
		return "", err
	}

	navCtx, cancel := context.WithTimeout(s.browserCtx, downloadTimeout)
	defer cancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url), page.SetDownloadBehavior(
		page.SetDownloadBehaviorBehaviorAllow).WithDownloadPath(s.downloadDir)); err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return "", ErrDownloadTimeout
		}
		return "", fmt.Errorf("browser: download %s: %w", url, err)
	}

	return s.pollForDownload(navCtx, expectedExt)
}

// DownloadWithRetry wraps Download with the same backoff policy as GetWithRetry.
func (s *Session) DownloadWithRetry(ctx context.Context, url, expectedExt string) (string, error) {
	return retry(ctx, func() (string, error) { return s.Download(ctx, url, expectedExt) })
}

func (s *Session) pollForDownload(ctx context.Context, expectedExt string) (string, error) {
	var lastSize int64 = -1
	var candidate string

	deadline := time.Now().Add(downloadTimeout)
	for time.Now().Before(deadline) {
		entries, err := os.ReadDir(s.downloadDir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), expectedExt) {
					continue
				}
				info, err := e.Info()
				if err != nil {
					continue
				}
				if info.Size() == lastSize && lastSize > 0 {
					return filepath.Join(s.downloadDir, e.Name()), nil
				}
				candidate = e.Name()
				lastSize = info.Size()
			}
		}
		select {
		case <-ctx.Done():
			return "", ErrDownloadTimeout
		case <-time.After(500 * time.Millisecond):
		}
	}
	if candidate != "" {
		return filepath.Join(s.downloadDir, candidate), nil
	}
	return "", ErrDownloadTimeout
}

// Close releases the browser and removes the download directory.
func (s *Session) Close() error {
	s.cancelBrow()
	s.cancelAlloc()
	return os.RemoveAll(s.downloadDir)
}

// waitHumanDelay sleeps 0.5-2s normally, 2-6s on a domain's first load,
// mirroring wait_with_random_delay's evasion of rate-based blocking.
func (s *Session) waitHumanDelay(url string) {
	domain := url
	if idx := strings.Index(url[strings.Index(url, "//")+2:], "/"); idx >= 0 {
		domain = url[:strings.Index(url, "//")+2+idx]
	}

	var lo, hi time.Duration
	if !s.firstLoad[domain] {
		lo, hi = 2*time.Second, 6*time.Second
		s.firstLoad[domain] = true
	} else {
		lo, hi = 500*time.Millisecond, 2*time.Second
	}
	time.Sleep(lo + time.Duration(rand.Int63n(int64(hi-lo)+1)))
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("browser: read download dir: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("browser: clear download dir: %w", err)
		}
	}
	return nil
}

// retry applies exponential backoff base*2^k + jitter for up to 3
// attempts.
func retry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	const (
		maxAttempts = 3
		base        = 5 * time.Second
	)
	var zero T
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !errors.Is(err, ErrBotChallengeDetected) && !errors.Is(err, ErrNavigationTimeout) &&
			!errors.Is(err, ErrDownloadTimeout) {
			return zero, err
		}
		delay := base*time.Duration(1<<attempt) + time.Duration(rand.Int63n(int64(time.Second)))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}
