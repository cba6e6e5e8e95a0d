package research

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"briefer/internal/logging"
	"briefer/internal/schema"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const paragraphScript = `() => Array.from(document.querySelectorAll('p'))
	.map(p => (p.innerText || '').replace(/\s+/g, ' ').trim())
	.join('\n')`

// BrowserConfig controls the headless Chromium fetcher.
type BrowserConfig struct {
	// DebuggerURL connects to an already running browser instead of launching one.
	DebuggerURL string
	// Bin overrides the Chromium binary used by the launcher.
	Bin      string
	Headless bool
	Timeout  time.Duration
	MaxChars int
}

// BrowserFetcher renders pages in headless Chromium so script-built content
// is visible. The browser is started on first use; each fetch runs in its
// own incognito context.
type BrowserFetcher struct {
	cfg BrowserConfig

	mu      sync.Mutex
	launch  *launcher.Launcher
	browser *rod.Browser
}

// NewBrowserFetcher creates a fetcher. Nothing is launched until Fetch.
func NewBrowserFetcher(cfg BrowserConfig) *BrowserFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = schema.MaxPageText
	}
	return &BrowserFetcher{cfg: cfg}
}

// Start connects to (or launches) the browser. Safe to call repeatedly.
func (f *BrowserFetcher) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startLocked(ctx)
}

func (f *BrowserFetcher) startLocked(ctx context.Context) error {
	if f.browser != nil {
		return nil
	}

	controlURL := f.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(f.cfg.Headless)
		if f.cfg.Bin != "" {
			l = l.Bin(f.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		f.launch = l
		controlURL = u
	}

	// The browser outlives the request that started it.
	browser := rod.New().ControlURL(controlURL).Context(context.WithoutCancel(ctx))
	if err := browser.Connect(); err != nil {
		f.killLauncher()
		return fmt.Errorf("connect to chrome: %w", err)
	}
	f.browser = browser
	logging.Research("browser connected: %s", controlURL)
	return nil
}

// Fetch navigates to url and returns the rendered paragraph text. Failures
// yield the empty string.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) string {
	if url == "" {
		return ""
	}
	text, err := f.fetch(ctx, url)
	if err != nil {
		logging.ResearchDebug("browser fetch %s: %v", url, err)
		return ""
	}
	return schema.Truncate(text, f.cfg.MaxChars)
}

func (f *BrowserFetcher) fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	if err := f.startLocked(ctx); err != nil {
		f.mu.Unlock()
		return "", err
	}
	browser := f.browser
	f.mu.Unlock()

	incognito, err := browser.Incognito()
	if err != nil {
		return "", fmt.Errorf("incognito context: %w", err)
	}
	defer func() { _ = incognito.Close() }()

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	p := page.Context(ctx).Timeout(f.cfg.Timeout)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}
	res, err := p.Eval(paragraphScript)
	if err != nil {
		return "", fmt.Errorf("extract paragraphs: %w", err)
	}
	return strings.TrimSpace(res.Value.Str()), nil
}

// Close shuts the browser down and kills a launched process.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if f.browser != nil {
		err = f.browser.Close()
		f.browser = nil
	}
	f.killLauncher()
	return err
}

func (f *BrowserFetcher) killLauncher() {
	if f.launch != nil {
		f.launch.Kill()
		f.launch.Cleanup()
		f.launch = nil
	}
}
