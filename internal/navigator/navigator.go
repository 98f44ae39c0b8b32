package navigator

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/sriaudit/comprobantes-api/internal/browser"
	"github.com/sriaudit/comprobantes-api/internal/config"
	"github.com/sriaudit/comprobantes-api/internal/models"
)

// Filters select the period, document type and source of a consultation
type Filters struct {
	Anio   int
	Mes    int
	Tipo   string
	Origen string
}

// Navigator drives the portal's consultation UI
type Navigator struct {
	cfg    config.SRIConfig
	logger *logrus.Entry
}

// New creates a navigator
func New(cfg config.SRIConfig, logger *logrus.Logger) *Navigator {
	return &Navigator{
		cfg:    cfg,
		logger: logger.WithField("component", "navigator"),
	}
}

// ModuleURL returns the consultation page for a source
func (n *Navigator) ModuleURL(origen string) string {
	if origen == models.OrigenEmitidos {
		return n.cfg.EmitidosURL
	}
	return n.cfg.RecibidosURL
}

// OpenModule navigates to the source's consultation page and waits out any
// captcha shown on arrival.
func (n *Navigator) OpenModule(ctx context.Context, origen string) error {
	navCtx, cancel := context.WithTimeout(ctx, n.cfg.NavTimeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(n.ModuleURL(origen)),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to open %s module: %w", origen, err)
	}
	browser.WaitCaptchaGone(ctx, n.cfg.CaptchaWait)
	return nil
}

// ApplyFilters selects year, month and document type. A filter that cannot
// be applied is reported as a warning and the navigator proceeds with the
// portal's default state; the caller must treat the result as potentially
// over-broad.
func (n *Navigator) ApplyFilters(ctx context.Context, f Filters) []string {
	var warnings []string

	selections := []struct {
		label  string
		option string
	}{
		{"Período emisión", fmt.Sprintf("%d", f.Anio)},
		{"Período emisión", MesATexto(f.Mes)},
		// A third combo may narrow to a day; "Todos" keeps the whole month
		{"Período emisión", "Todos"},
		{"Tipo de comprobante", tipoVisible(f.Tipo)},
	}

	for _, sel := range selections {
		ok, err := n.selectOption(ctx, sel.label, sel.option)
		if err != nil || !ok {
			// Day selector is best-effort only; its absence is not worth a warning
			if sel.option == "Todos" {
				continue
			}
			warning := fmt.Sprintf("filtro no aplicado: %s=%s", sel.label, sel.option)
			n.logger.WithFields(logrus.Fields{
				"label":  sel.label,
				"option": sel.option,
			}).Warn("Filter not applied, proceeding unfiltered")
			warnings = append(warnings, warning)
		}
	}

	return warnings
}

// Consultar triggers the search action and waits for the page to settle
func (n *Navigator) Consultar(ctx context.Context) error {
	if err := browser.ClickControl("Consultar").Do(ctx); err != nil {
		return err
	}
	return chromedp.Run(ctx, browser.Settle(800*time.Millisecond))
}

// SelectAccessKeySearch switches the module's search mode to access key
// lookup. Absence of the toggle is tolerated; some module versions search by
// key by default.
func (n *Navigator) SelectAccessKeySearch(ctx context.Context, clave string) error {
	toggle := browser.ClickControl("Clave de acceso")
	if err := toggle.Do(ctx); err != nil {
		n.logger.Debug("Access-key toggle not found, assuming default search mode")
	}

	fill := browser.Chain{
		Control: "clave de acceso input",
		Strategies: []browser.Strategy{
			{
				Name: "placeholder",
				Run: func(ctx context.Context) error {
					return chromedp.Run(ctx,
						chromedp.SendKeys(`input[placeholder*="Clave de acceso"]`, clave, chromedp.ByQuery))
				},
			},
			{
				Name: "first-text-input",
				Run: func(ctx context.Context) error {
					return chromedp.Run(ctx,
						chromedp.SendKeys(`input[type="text"]`, clave, chromedp.ByQuery))
				},
			},
		},
	}
	return fill.Do(ctx)
}

// selectOption picks an option on a select control located by its label
// text, then by proximity, then by probing every select on the page.
func (n *Navigator) selectOption(ctx context.Context, label, option string) (bool, error) {
	var ok bool
	attemptCtx, cancel := context.WithTimeout(ctx, browser.DefaultAttemptTimeout)
	defer cancel()

	err := chromedp.Run(attemptCtx,
		chromedp.Evaluate(selectOptionJS(label, option), &ok),
	)
	if err != nil {
		return false, err
	}
	if ok {
		// JSF selects re-query the backend on change
		_ = chromedp.Run(ctx, browser.Settle(300*time.Millisecond))
	}
	return ok, nil
}

// selectOptionJS builds the in-page probe. Layered like the locator chains:
// label-associated select, then a select near the label text, then any
// select carrying the wanted option.
func selectOptionJS(label, option string) string {
	return fmt.Sprintf(`(function(label, wanted) {
		function pick(sel) {
			if (!sel) return false;
			for (const opt of sel.options) {
				if (opt.text.trim() === wanted || opt.text.trim().includes(wanted)) {
					sel.value = opt.value;
					sel.dispatchEvent(new Event('change', { bubbles: true }));
					return true;
				}
			}
			return false;
		}
		// 1) label element pointing at (or containing) a select
		for (const lab of document.querySelectorAll('label')) {
			if (!lab.textContent.includes(label)) continue;
			let sel = null;
			if (lab.htmlFor) sel = document.getElementById(lab.htmlFor);
			if (!sel || sel.tagName !== 'SELECT') sel = lab.querySelector('select');
			if (!sel && lab.parentElement) sel = lab.parentElement.querySelector('select');
			if (pick(sel)) return true;
		}
		// 2) any element with the label text, nearest select in its vicinity
		const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
		while (walker.nextNode()) {
			const node = walker.currentNode;
			if (!node.textContent.includes(label)) continue;
			let el = node.parentElement;
			for (let depth = 0; el && depth < 3; depth++, el = el.parentElement) {
				if (pick(el.querySelector('select'))) return true;
			}
		}
		// 3) last resort: any select on the page carrying the option
		for (const sel of document.querySelectorAll('select')) {
			if (pick(sel)) return true;
		}
		return false;
	})(%q, %q)`, label, option)
}

func tipoVisible(tipo string) string {
	if visible, ok := models.TiposComprobante[tipo]; ok {
		return visible
	}
	return tipo
}

var meses = []string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// MesATexto returns the Spanish month name the portal's selector shows
func MesATexto(mes int) string {
	if mes < 1 || mes > 12 {
		return ""
	}
	return meses[mes-1]
}
