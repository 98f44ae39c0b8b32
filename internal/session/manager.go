package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/sriaudit/comprobantes-api/internal/browser"
	"github.com/sriaudit/comprobantes-api/internal/config"
)

// ErrAuth marks a recoverable authentication failure: login fields could not
// be located, or the portal still shows the login form after submitting.
// Callers may retry with fresh credentials.
var ErrAuth = errors.New("authentication failed")

// Identity is one taxpayer's portal credentials
type Identity struct {
	RUC   string
	Clave string
}

// Manager establishes authenticated portal sessions, reusing persisted
// cookie sets when possible.
type Manager struct {
	repo   *Repository
	cfg    config.SRIConfig
	logger *logrus.Entry
}

// NewManager creates a session manager
func NewManager(repo *Repository, cfg config.SRIConfig, logger *logrus.Logger) *Manager {
	return &Manager{
		repo:   repo,
		cfg:    cfg,
		logger: logger.WithField("component", "session"),
	}
}

// Establish makes ctx's browser authenticated for the identity. A persisted
// session is installed optimistically without a validation round-trip; the
// first module navigation validates it implicitly. force skips reuse and
// performs a fresh interactive login.
func (m *Manager) Establish(ctx context.Context, id Identity, force bool) error {
	if !force {
		data, err := m.repo.Load(ctx, id.RUC)
		if err == nil {
			if err := installCookies(ctx, data); err == nil {
				m.logger.WithField("ruc", id.RUC).Info("Reusing persisted session")
				return nil
			}
			m.logger.WithField("ruc", id.RUC).Warn("Persisted session unusable, logging in")
		} else if !errors.Is(err, ErrNoSession) {
			m.logger.WithError(err).Warn("Session load failed, logging in")
		}
	}

	if err := m.login(ctx, id); err != nil {
		// A half-established session must not be reused on the next run
		_ = m.repo.Delete(ctx, id.RUC)
		return err
	}

	data, err := exportCookies(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("Could not export session cookies; next run will log in again")
		return nil
	}
	if err := m.repo.Save(ctx, id.RUC, data); err != nil {
		m.logger.WithError(err).Warn("Could not persist session")
	}
	return nil
}

// login performs the interactive login flow, suspending for the image
// captcha when one is shown.
func (m *Manager) login(ctx context.Context, id Identity) error {
	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavTimeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(m.cfg.LoginURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to reach login page: %w", err)
	}

	if err := m.fillCredentials(ctx, id); err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}

	browser.WaitCaptchaGone(ctx, m.cfg.CaptchaWait)

	if err := browser.ClickControl("Ingresar").Do(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}

	if err := chromedp.Run(ctx, browser.Settle(2*time.Second)); err != nil {
		return err
	}

	// If the password field survived the submit, the login did not take
	var stillLogin bool
	err = chromedp.Run(ctx,
		chromedp.Evaluate(`!!document.querySelector("input[type='password']")`, &stillLogin),
	)
	if err == nil && stillLogin {
		return fmt.Errorf("%w: portal still shows the login form", ErrAuth)
	}

	m.logger.WithField("ruc", id.RUC).Info("Interactive login completed")
	return nil
}

func (m *Manager) fillCredentials(ctx context.Context, id Identity) error {
	fill := browser.Chain{
		Control: "login fields",
		Strategies: []browser.Strategy{
			{
				Name: "named-inputs",
				Run: func(ctx context.Context) error {
					return chromedp.Run(ctx,
						chromedp.SendKeys(`input[name="usuario"]`, id.RUC, chromedp.ByQuery),
						chromedp.SendKeys(`input[name="password"]`, id.Clave, chromedp.ByQuery),
					)
				},
			},
			{
				Name: "placeholders",
				Run: func(ctx context.Context) error {
					return chromedp.Run(ctx,
						chromedp.SendKeys(`input[placeholder*="Ruc"]`, id.RUC, chromedp.ByQuery),
						chromedp.SendKeys(`input[placeholder*="Contraseña"]`, id.Clave, chromedp.ByQuery),
					)
				},
			},
		},
	}
	return fill.Do(ctx)
}

// installCookies decodes a persisted cookie set and applies it to the browser
func installCookies(ctx context.Context, data []byte) error {
	var cookies []*network.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("corrupt session data: %w", err)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("empty session data")
	}

	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		params = append(params, p)
	}

	return chromedp.Run(ctx, storage.SetCookies(params))
}

// exportCookies serializes the browser's current cookie set
func exportCookies(ctx context.Context) ([]byte, error) {
	var data []byte
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		data, err = json.Marshal(cookies)
		return err
	}))
	return data, err
}
