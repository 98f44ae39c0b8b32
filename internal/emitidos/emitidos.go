package emitidos

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/sriaudit/comprobantes-api/internal/models"
	"github.com/sriaudit/comprobantes-api/internal/normalizer"
)

// ErrNoTable means no results table could be located in the page HTML
var ErrNoTable = errors.New("results table not found")

var (
	accessKeyRe = regexp.MustCompile(`^\d{49}$`)
	fechaRe     = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	numberRe    = regexp.MustCompile(`^-?[\d.,]+$`)
)

// Scraper recovers issued-document rows straight from the results table when
// the portal offers no report download for the period.
type Scraper struct {
	timeout time.Duration
	logger  *logrus.Entry
}

// NewScraper creates the fallback scraper. timeout bounds the page grab;
// zero disables the bound.
func NewScraper(timeout time.Duration, logger *logrus.Logger) *Scraper {
	return &Scraper{
		timeout: timeout,
		logger:  logger.WithField("component", "emitidos"),
	}
}

// Scrape grabs the rendered page HTML from the current tab and extracts
// whatever rows it can. Returned records are best-effort and the caller is
// expected to flag the run as degraded.
func (s *Scraper) Scrape(ctx context.Context) ([]models.Comprobante, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		return nil, err
	}
	return s.ParseResultsTable(html)
}

// ParseResultsTable finds the table whose rows carry access keys and maps
// each row to a record by column shape, not position: the 49-digit cell is
// the key, a DD/MM/YYYY cell the date, numeric cells subtotal/IVA/total in
// order, and the longest remaining text the issuer name.
func (s *Scraper) ParseResultsTable(html string) ([]models.Comprobante, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var records []models.Comprobante
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := tableRecords(table)
		if len(rows) > 0 {
			records = rows
			return false
		}
		return true
	})

	if records == nil {
		return nil, ErrNoTable
	}
	s.logger.WithField("rows", len(records)).Info("Recovered rows from results table")
	return records, nil
}

func tableRecords(table *goquery.Selection) []models.Comprobante {
	var records []models.Comprobante
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		if rec, ok := recordFromCells(cells); ok {
			records = append(records, rec)
		}
	})
	return records
}

func recordFromCells(cells []string) (models.Comprobante, bool) {
	var rec models.Comprobante
	for _, c := range cells {
		if accessKeyRe.MatchString(c) {
			rec.ClaveAcceso = c
			break
		}
	}
	if rec.ClaveAcceso == "" {
		return rec, false
	}

	var amounts []float64
	for _, c := range cells {
		switch {
		case c == rec.ClaveAcceso:
		case fechaRe.MatchString(c):
			if rec.FechaEmision == "" {
				rec.FechaEmision = c
			}
		case numberRe.MatchString(c):
			amounts = append(amounts, normalizer.ParseAmount(c))
		default:
			if len(c) > len(rec.RazonSocial) {
				rec.RazonSocial = c
			}
		}
	}

	// Numeric cells appear as subtotal, IVA, total in the portal's layout
	if len(amounts) > 0 {
		rec.Subtotal = amounts[0]
	}
	if len(amounts) > 1 {
		rec.IVA = amounts[1]
	}
	if len(amounts) > 2 {
		rec.Total = amounts[2]
	} else if len(amounts) > 0 {
		rec.Total = amounts[len(amounts)-1]
	}

	return rec, true
}
