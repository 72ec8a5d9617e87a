package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeLauncher launches a local Chrome through chromedp.
type ChromeLauncher struct {
	headless  bool
	noSandbox bool
	execPath  string
	userAgent string
}

// ChromeOption configures a ChromeLauncher.
type ChromeOption func(*ChromeLauncher)

// WithHeadless toggles headless mode. The default is headless.
func WithHeadless(headless bool) ChromeOption {
	return func(l *ChromeLauncher) { l.headless = headless }
}

// WithUserAgent overrides the browser user agent.
func WithUserAgent(ua string) ChromeOption {
	return func(l *ChromeLauncher) { l.userAgent = ua }
}

// WithExecPath sets the Chrome binary. By default chromedp searches the
// usual install locations.
func WithExecPath(path string) ChromeOption {
	return func(l *ChromeLauncher) { l.execPath = path }
}

// WithNoSandbox disables the Chrome sandbox, which is required when running
// as root inside containers.
func WithNoSandbox() ChromeOption {
	return func(l *ChromeLauncher) { l.noSandbox = true }
}

// NewChromeLauncher returns a launcher for a headless Chrome.
func NewChromeLauncher(opts ...ChromeOption) *ChromeLauncher {
	l := &ChromeLauncher{headless: true}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch starts Chrome and returns once the browser answers. The browser
// outlives ctx; it is stopped by Instance.Close.
func (l *ChromeLauncher) Launch(ctx context.Context) (Instance, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.headless),
		chromedp.Flag("disable-gpu", true),
	)
	if l.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.userAgent))
	}
	if l.execPath != "" {
		opts = append(opts, chromedp.ExecPath(l.execPath))
	}
	if l.noSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the process. Abort it if the caller gives up.
	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser: start chrome: %w", err)
	}

	return &chromeInstance{
		ctx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}, nil
}

type chromeInstance struct {
	ctx    context.Context //nolint:containedctx // browser lifetime context
	cancel context.CancelFunc
}

func (c *chromeInstance) NewTab(ctx context.Context) (Tab, error) {
	if err := c.ctx.Err(); err != nil {
		return nil, fmt.Errorf("browser: session closed: %w", err)
	}
	tabCtx, tabCancel := chromedp.NewContext(c.ctx)

	// The first Run creates the target and binds its event loop to the
	// context it is given, so it must run on tabCtx itself. A derived
	// context would tear the tab down as soon as the call returned.
	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
	)
	if !stop() {
		tabCancel()
		return nil, fmt.Errorf("browser: open tab: %w", ctx.Err())
	}
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("browser: open tab: %w", err)
	}
	return &chromeTab{ctx: tabCtx, cancel: tabCancel}, nil
}

func (c *chromeInstance) Close() error {
	c.cancel()
	return nil
}

type chromeTab struct {
	ctx    context.Context //nolint:containedctx // tab lifetime context
	cancel context.CancelFunc
}

// run executes actions on the tab, aborting them when ctx ends. The target
// already exists, so cancelling the derived context only aborts the
// actions and leaves the tab open.
func (t *chromeTab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("browser: %w", ctx.Err())
		}
		return fmt.Errorf("browser: %w", err)
	}
	return nil
}

func (t *chromeTab) Navigate(ctx context.Context, url string) error {
	return t.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (t *chromeTab) Click(ctx context.Context, selector string) error {
	by := chromedp.ByQuery
	if strings.HasPrefix(selector, "/") {
		by = chromedp.BySearch
	}
	return t.run(ctx, chromedp.Click(selector, by, chromedp.NodeVisible))
}

func (t *chromeTab) WaitVisible(ctx context.Context, selector string) error {
	return t.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (t *chromeTab) HTML(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (t *chromeTab) Close() error {
	t.cancel()
	return nil
}
