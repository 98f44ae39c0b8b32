package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// ErrControlNotFound is returned when every locator strategy for a control
// has been exhausted.
var ErrControlNotFound = errors.New("control not found")

// DefaultAttemptTimeout bounds each individual locator strategy
const DefaultAttemptTimeout = 3 * time.Second

// Strategy is one way of locating and acting on an ambiguously-identified
// control.
type Strategy struct {
	Name string
	Run  func(ctx context.Context) error
}

// Chain is an ordered list of locator strategies for one control. Strategies
// are tried in sequence under a bounded per-attempt timeout; the first
// success wins and exhaustion is a typed failure. This absorbs small UI
// drift on the portal without code changes.
type Chain struct {
	Control        string
	AttemptTimeout time.Duration
	Strategies     []Strategy
}

// Do runs the chain. It returns nil on the first strategy that succeeds and
// wraps ErrControlNotFound when all strategies fail.
func (c Chain) Do(ctx context.Context) error {
	timeout := c.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}

	var attempted []string
	for _, s := range c.Strategies {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err := s.Run(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		attempted = append(attempted, s.Name)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%q (tried %s): %w", c.Control, strings.Join(attempted, ", "), ErrControlNotFound)
}

// ClickControl builds the layered chain for clicking a control identified by
// its visible text: exact-ish button match, then any-element text match, then
// title-attribute XPath.
func ClickControl(text string) Chain {
	lit := xpathLiteral(text)
	return Chain{
		Control: text,
		Strategies: []Strategy{
			{
				Name: "button-text",
				Run:  clickXPath(fmt.Sprintf(`//button[contains(normalize-space(.), %s)]`, lit)),
			},
			{
				Name: "any-text",
				Run:  clickXPath(fmt.Sprintf(
					`//*[self::a or self::span or self::input][contains(normalize-space(.), %s) or contains(@value, %s)]`, lit, lit)),
			},
			{
				Name: "title-attr",
				Run:  clickXPath(fmt.Sprintf(
					`//button[contains(@title, %s)] | //a[contains(@title, %s)]`, lit, lit)),
			},
		},
	}
}

// ClickDownloadControl builds a chain over several likely labels for a
// download action plus a title-attribute sweep, e.g. ("XML", "Descargar XML")
// or ("RIDE", "PDF", "Descargar PDF").
func ClickDownloadControl(labels ...string) Chain {
	var strategies []Strategy
	for _, label := range labels {
		lit := xpathLiteral(label)
		strategies = append(strategies,
			Strategy{
				Name: "text:" + label,
				Run:  clickXPath(fmt.Sprintf(
					`//button[contains(normalize-space(.), %s)] | //a[contains(normalize-space(.), %s)]`, lit, lit)),
			},
		)
	}
	for _, label := range labels {
		lit := xpathLiteral(label)
		strategies = append(strategies,
			Strategy{
				Name: "title:" + label,
				Run:  clickXPath(fmt.Sprintf(
					`//a[contains(@title, %s)] | //button[contains(@title, %s)] | //img[contains(@title, %s)]/..`, lit, lit, lit)),
			},
		)
	}
	return Chain{Control: strings.Join(labels, "/"), Strategies: strategies}
}

func clickXPath(xpath string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.Click(xpath, chromedp.BySearch))
	}
}

// xpathLiteral quotes s as an XPath string literal, falling back to concat()
// when it contains both quote kinds.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `'`) {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, `'`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
