package fetcher

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/sriaudit/comprobantes-api/internal/browser"
	"github.com/sriaudit/comprobantes-api/internal/config"
	"github.com/sriaudit/comprobantes-api/internal/models"
	"github.com/sriaudit/comprobantes-api/internal/navigator"
)

// ItemResult is the outcome of fetching one document's artifacts
type ItemResult struct {
	ClaveAcceso string
	XMLSaved    bool
	PDFSaved    bool
	Err         error
}

// ItemFetcher retrieves the artifacts for one seed record. ctx must carry
// the page context the fetch should run on.
type ItemFetcher interface {
	FetchItem(ctx context.Context, rec models.SeedRecord, formatos []string) ItemResult
}

// ChromeFetcher fetches artifacts by driving the portal's search-by-key UI
type ChromeFetcher struct {
	cfg    config.SRIConfig
	nav    *navigator.Navigator
	origen string
	xmlDir string
	pdfDir string
	logger *logrus.Entry
}

// NewChromeFetcher creates the browser-backed item fetcher. Downloads land
// in xmlDir/pdfDir named after the access key.
func NewChromeFetcher(cfg config.SRIConfig, nav *navigator.Navigator, origen, xmlDir, pdfDir string, logger *logrus.Logger) *ChromeFetcher {
	return &ChromeFetcher{
		cfg:    cfg,
		nav:    nav,
		origen: origen,
		xmlDir: xmlDir,
		pdfDir: pdfDir,
		logger: logger.WithField("component", "fetcher"),
	}
}

// FetchItem re-runs the module search for one access key and downloads the
// requested formats. Every item starts from a freshly navigated search page
// so no state leaks between items.
func (f *ChromeFetcher) FetchItem(ctx context.Context, rec models.SeedRecord, formatos []string) ItemResult {
	result := ItemResult{ClaveAcceso: rec.ClaveAcceso}

	if err := f.nav.OpenModule(ctx, f.origen); err != nil {
		result.Err = fmt.Errorf("failed to reopen module: %w", err)
		return result
	}
	if err := f.nav.SelectAccessKeySearch(ctx, rec.ClaveAcceso); err != nil {
		result.Err = fmt.Errorf("failed to enter access key: %w", err)
		return result
	}
	if err := f.nav.Consultar(ctx); err != nil {
		result.Err = fmt.Errorf("search failed: %w", err)
		return result
	}

	for _, formato := range formatos {
		switch formato {
		case models.FormatoXML:
			if err := f.download(ctx, f.xmlDir, rec.ClaveAcceso+".xml",
				browser.ClickDownloadControl("XML", "Descargar XML")); err != nil {
				result.Err = joinItemErr(result.Err, fmt.Errorf("xml: %w", err))
				continue
			}
			result.XMLSaved = true
		case models.FormatoPDF:
			// RIDE is the portal's name for the printable rendition
			if err := f.download(ctx, f.pdfDir, rec.ClaveAcceso+".pdf",
				browser.ClickDownloadControl("RIDE", "PDF", "Descargar PDF")); err != nil {
				result.Err = joinItemErr(result.Err, fmt.Errorf("pdf: %w", err))
				continue
			}
			result.PDFSaved = true
		}
	}

	return result
}

func (f *ChromeFetcher) download(ctx context.Context, dir, name string, chain browser.Chain) error {
	trigger := chromedp.ActionFunc(func(ctx context.Context) error {
		return chain.Do(ctx)
	})
	path, err := browser.Download(ctx, dir, name, f.cfg.DownloadTimeout, trigger)
	if err != nil {
		return err
	}
	f.logger.WithField("file", filepath.Base(path)).Debug("Artifact saved")
	return nil
}

func joinItemErr(existing, next error) error {
	if existing == nil {
		return next
	}
	return fmt.Errorf("%v; %v", existing, next)
}
