// Package fetcher provides the real, out-of-core page-fetch collaborator:
// a worker loop that pulls URLs from the frontier, renders them with a
// headless browser, and schedules any outbound links it finds. The
// frontier core never imports this package; WebFetcher only imports the
// frontier's public types, matching the "external collaborator" boundary
// the core package describes.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/crawlfrontier/frontier/frontier"
	"github.com/crawlfrontier/frontier/idgen"
)

// Config tunes the browser pool and per-page behavior, grounded on
// indexer.Config's fetch-related fields.
type Config struct {
	Headless       bool
	MaxConcurrency int
	PageTimeout    time.Duration
	MaxDepth       uint16
	UserAgent      string
}

// DefaultConfig returns sensible defaults for a local demo crawl.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		MaxConcurrency: 4,
		PageTimeout:    30 * time.Second,
		MaxDepth:       10,
		UserAgent:      "crawlfrontier-bot/1.0",
	}
}

// WebFetcher owns a pooled headless-browser session and drives workers
// that each loop: claim a URL, render it, schedule discovered links,
// report completion. Adapted from indexer.BrowserManager's page-pool
// pattern.
type WebFetcher struct {
	cfg      Config
	pw       *playwright.Playwright
	browser  playwright.Browser
	pagePool chan playwright.Page
	ids      *idgen.Allocator

	mu     sync.Mutex
	closed bool
}

// NewWebFetcher installs (if needed) and launches a Chromium instance,
// pre-warming a page pool sized to cfg.MaxConcurrency.
func NewWebFetcher(cfg Config, ids *idgen.Allocator) (*WebFetcher, error) {
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		slog.Warn("playwright install returned an error, assuming browsers are already present", "error", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	wf := &WebFetcher{
		cfg:      cfg,
		pw:       pw,
		browser:  browser,
		pagePool: make(chan playwright.Page, cfg.MaxConcurrency),
		ids:      ids,
	}

	for i := 0; i < cfg.MaxConcurrency; i++ {
		page, err := wf.newPage()
		if err != nil {
			wf.Close()
			return nil, fmt.Errorf("failed to create page %d: %w", i, err)
		}
		wf.pagePool <- page
	}

	return wf, nil
}

func (wf *WebFetcher) newPage() (playwright.Page, error) {
	ctx, err := wf.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(wf.cfg.UserAgent),
		Viewport:  &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		return nil, err
	}
	page, err := ctx.NewPage()
	if err != nil {
		ctx.Close()
		return nil, err
	}
	page.SetDefaultTimeout(float64(wf.cfg.PageTimeout.Milliseconds()))
	return page, nil
}

func (wf *WebFetcher) acquirePage() (playwright.Page, error) {
	select {
	case page := <-wf.pagePool:
		return page, nil
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("timeout waiting for an available browser page")
	}
}

func (wf *WebFetcher) releasePage(page playwright.Page) {
	wf.mu.Lock()
	closed := wf.closed
	wf.mu.Unlock()
	if closed {
		page.Context().Close()
		return
	}

	page.Goto("about:blank")
	select {
	case wf.pagePool <- page:
	default:
		page.Context().Close()
	}
}

// RunWorker loops, claiming a URL from f, rendering it, scheduling its
// outbound links, and reporting processed/abandoned, until ctx is
// cancelled or f.Finish has been called.
func (wf *WebFetcher) RunWorker(ctx context.Context, f *frontier.Frontier, workerID string) {
	w := frontier.NewWorker(workerID, func(seedDocid uint64) {
		slog.Info("seed finished", "seed_docid", seedDocid, "worker", workerID)
	})

	for {
		rec, err := f.GetNextURL(ctx, w)
		if err != nil {
			if _, interrupted := err.(*frontier.Interrupted); interrupted {
				return
			}
			if ctx.Err() != nil {
				return
			}
			slog.Error("GetNextURL failed", "worker", workerID, "error", err)
			return
		}

		if err := wf.fetchAndSchedule(ctx, f, *rec); err != nil {
			slog.Error("fetch failed, abandoning claim", "worker", workerID, "docid", rec.Docid, "url", rec.URL, "error", err)
			if abErr := f.Abandon(ctx, w, *rec); abErr != nil {
				slog.Error("abandon failed", "worker", workerID, "error", abErr)
			}
			continue
		}

		if err := f.SetProcessed(ctx, w, *rec); err != nil {
			slog.Error("set_processed failed", "worker", workerID, "docid", rec.Docid, "error", err)
		}
	}
}

func (wf *WebFetcher) fetchAndSchedule(ctx context.Context, f *frontier.Frontier, rec frontier.URLRecord) error {
	page, err := wf.acquirePage()
	if err != nil {
		return err
	}
	defer wf.releasePage(page)

	if _, err := page.Goto(rec.URL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(wf.cfg.PageTimeout.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("navigate to %s: %w", rec.URL, err)
	}

	links, err := wf.extractLinks(page)
	if err != nil {
		slog.Warn("failed to extract links", "url", rec.URL, "error", err)
		return nil
	}

	if rec.Depth >= wf.cfg.MaxDepth {
		return nil
	}

	children := make([]frontier.URLRecord, 0, len(links))
	for _, link := range links {
		host, err := hostOf(link)
		if err != nil {
			continue
		}
		children = append(children, frontier.URLRecord{
			Docid:       wf.ids.Next(),
			SeedDocid:   rec.SeedDocid,
			ParentDocid: rec.Docid,
			Priority:    rec.Priority,
			Depth:       rec.Depth + 1,
			URL:         link,
			Host:        host,
		})
	}

	if len(children) == 0 {
		return nil
	}
	_, err = f.ScheduleAll(ctx, children)
	return err
}

func (wf *WebFetcher) extractLinks(page playwright.Page) ([]string, error) {
	result, err := page.Evaluate(`() => {
		const anchors = Array.from(document.querySelectorAll('a[href]'));
		return anchors.map(a => a.href).filter(href => href && href.startsWith('http'));
	}`)
	if err != nil {
		return nil, err
	}

	raw, ok := result.([]interface{})
	if !ok {
		return nil, nil
	}
	links := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			links = append(links, s)
		}
	}
	return links, nil
}

// Close tears down the browser and Playwright driver.
func (wf *WebFetcher) Close() {
	wf.mu.Lock()
	wf.closed = true
	wf.mu.Unlock()

	if wf.browser != nil {
		wf.browser.Close()
	}
	if wf.pw != nil {
		wf.pw.Stop()
	}
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in url %q", rawURL)
	}
	return host, nil
}
