package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ACS-web2026/aste-backend/internal/domain"
)

type RenderedConfig struct {
	ChromePath      string
	UserAgent       string
	Settle          time.Duration
	InteractionWait time.Duration
}

// RenderedFetcher loads pages in a shared headless browser. The browser is
// started on first use and kept until Close.
type RenderedFetcher struct {
	cfg    RenderedConfig
	logger *slog.Logger

	mu            sync.Mutex
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
}

func NewRenderedFetcher(cfg RenderedConfig, logger *slog.Logger) *RenderedFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Settle == 0 {
		cfg.Settle = 2 * time.Second
	}
	if cfg.InteractionWait == 0 {
		cfg.InteractionWait = 5 * time.Second
	}
	return &RenderedFetcher{
		cfg:    cfg,
		logger: logger.With("fetcher", string(domain.MethodRendered)),
	}
}

func (f *RenderedFetcher) Fetch(ctx context.Context, req Request) (*Document, error) {
	browser, err := f.browser()
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(browser)
	defer cancelTab()

	// The tab follows the caller's deadline and cancellation.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	if err := chromedp.Run(tabCtx, chromedp.Navigate(req.URL)); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", req.URL, err)
	}

	if req.RequiresInteraction && req.Locality != "" {
		if err := f.interact(tabCtx, req); err != nil {
			f.logger.Warn("interaction failed, reading page as is",
				"source", req.Source, "error", err)
		}
	}

	var html, location string
	err = chromedp.Run(tabCtx,
		chromedp.Sleep(f.cfg.Settle),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("read page %s: %w", req.URL, err)
	}
	if location == "" {
		location = req.URL
	}

	return newDocument([]byte(html), location)
}

// interact types the locality into the search form and submits it.
func (f *RenderedFetcher) interact(ctx context.Context, req Request) error {
	in := req.Interaction
	if in.Input == "" {
		return errors.New("no input selector configured")
	}

	waitCtx, cancel := context.WithTimeout(ctx, f.cfg.InteractionWait)
	defer cancel()

	actions := []chromedp.Action{
		chromedp.WaitVisible(in.Input, chromedp.ByQuery),
		chromedp.SendKeys(in.Input, req.Locality, chromedp.ByQuery),
	}
	if in.Submit != "" {
		actions = append(actions, chromedp.Click(in.Submit, chromedp.ByQuery))
	}
	if err := chromedp.Run(waitCtx, actions...); err != nil {
		return fmt.Errorf("fill search form: %w", err)
	}
	return nil
}

func (f *RenderedFetcher) browser() (context.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browserCtx != nil && f.browserCtx.Err() == nil {
		return f.browserCtx, nil
	}
	f.shutdownLocked()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(f.cfg.UserAgent),
	)
	bin := f.cfg.ChromePath
	if bin == "" {
		bin = findChromeBinary()
	}
	if bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Run with no actions starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	f.logger.Info("browser started", "binary", bin)
	f.cancelAlloc = cancelAlloc
	f.browserCtx, f.cancelBrowser = browserCtx, cancelBrowser
	return browserCtx, nil
}

// Active reports whether a browser process is running.
func (f *RenderedFetcher) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.browserCtx != nil && f.browserCtx.Err() == nil
}

func (f *RenderedFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdownLocked()
	return nil
}

func (f *RenderedFetcher) shutdownLocked() {
	if f.cancelBrowser != nil {
		f.cancelBrowser()
	}
	if f.cancelAlloc != nil {
		f.cancelAlloc()
	}
	f.cancelAlloc = nil
	f.browserCtx, f.cancelBrowser = nil, nil
}

// findChromeBinary locates a Chrome or Chromium binary, honouring CHROME_BIN.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	for _, p := range []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
