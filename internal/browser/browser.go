package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/sriaudit/comprobantes-api/internal/config"
)

// Service owns the Chrome process and hands out tab contexts. All tabs share
// the same browser instance, so cookies installed by the session manager are
// visible to every tab.
type Service struct {
	cfg           config.BrowserConfig
	logger        *logrus.Logger
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewService launches the browser with the configured options
func NewService(cfg config.BrowserConfig, logger *logrus.Logger) (*Service, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(cfg.WindowW, cfg.WindowH),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Force the browser to start now so a broken Chrome install fails fast
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.WithField("headless", cfg.Headless).Info("Browser started")

	return &Service{
		cfg:           cfg,
		logger:        logger,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// NewTab creates an independent page context sharing the browser session
func (s *Service) NewTab() (context.Context, context.CancelFunc) {
	return chromedp.NewContext(s.browserCtx)
}

// Close shuts the browser down
func (s *Service) Close() {
	s.browserCancel()
	s.allocCancel()
	s.logger.Info("Browser stopped")
}

// WaitCaptchaGone waits for the portal's inline image captcha to disappear.
// The captcha is resolved out-of-band (by a human on a headed session, or it
// simply never appears on a warmed-up session); the automation only suspends
// for it. Absence of the captcha is the common case and returns immediately.
func WaitCaptchaGone(ctx context.Context, maxWait time.Duration) {
	deadline := time.Now().Add(maxWait)
	for {
		var present bool
		err := chromedp.Run(ctx,
			chromedp.Evaluate(`!!document.querySelector("img[alt='captcha']")`, &present),
		)
		if err != nil || !present {
			return
		}
		if time.Now().After(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Settle gives the page a moment to finish in-flight requests after an
// action. The portal is a JSF application that re-renders via AJAX, so a
// short quiet period is more reliable than waiting for a load event.
func Settle(d time.Duration) chromedp.Action {
	return chromedp.Sleep(d)
}
