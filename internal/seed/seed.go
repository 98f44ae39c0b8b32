package seed

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/net/html/charset"

	"github.com/sriaudit/comprobantes-api/internal/browser"
	"github.com/sriaudit/comprobantes-api/internal/models"
)

// ErrNoResults means the seed listing held zero valid access-key rows: a
// valid "no documents in period" outcome, distinct from a download failure.
var ErrNoResults = errors.New("no documents in period")

// sampleSize bounds how much of the file the delimiter sniffer reads
const sampleSize = 4096

var (
	accessKeyRe = regexp.MustCompile(`^\d{49}$`)
	fechaRe     = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
)

// Known type-label prefixes the listing may carry (lowercase)
var tipoPrefixes = []string{
	"factura",
	"comprobante de retención",
	"notas de crédito",
	"notas de débito",
	"liquidación",
}

// Download triggers the results page's report download and saves the
// delimited listing under destDir with the portal's suggested filename.
// fallbackName is used when the portal does not suggest one.
func Download(ctx context.Context, destDir, fallbackName string, timeout time.Duration) (string, error) {
	trigger := chromedp.ActionFunc(func(ctx context.Context) error {
		return browser.ClickControl("Descargar reporte").Do(ctx)
	})

	path, err := browser.Download(ctx, destDir, "", timeout, trigger)
	if err != nil {
		return "", fmt.Errorf("seed listing download failed: %w", err)
	}
	// No suggested filename means the file kept its download GUID
	if filepath.Ext(path) == "" && fallbackName != "" {
		renamed := filepath.Join(destDir, fallbackName)
		if err := os.Rename(path, renamed); err == nil {
			path = renamed
		}
	}
	return path, nil
}

// DetectDelimiter picks whichever of ';', ',' and tab occurs most often in
// the sample; ties and absence favor ';'.
func DetectDelimiter(sample []byte) rune {
	counts := map[rune]int{
		';':  bytes.Count(sample, []byte(";")),
		',':  bytes.Count(sample, []byte(",")),
		'\t': bytes.Count(sample, []byte("\t")),
	}

	best := ';'
	for _, cand := range []rune{',', '\t'} {
		if counts[cand] > counts[best] {
			best = cand
		}
	}
	return best
}

// IsAccessKey reports whether s, trimmed, is exactly 49 decimal digits
func IsAccessKey(s string) bool {
	return accessKeyRe.MatchString(strings.TrimSpace(s))
}

// ParseFile reads the seed listing and extracts one record per row holding
// an access key. Rows without one are skipped; tipo and fecha are filled
// opportunistically when some column matches. Zero records is ErrNoResults.
func ParseFile(path string) ([]models.SeedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed listing: %w", err)
	}
	defer f.Close()

	sample := make([]byte, sampleSize)
	n, _ := io.ReadFull(f, sample)
	delim := DetectDelimiter(sample[:n])

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	return parse(f, delim)
}

func parse(r io.Reader, delim rune) ([]models.SeedRecord, error) {
	// Portal exports are not always UTF-8
	decoded, err := charset.NewReader(r, "text/plain")
	if err != nil {
		return nil, fmt.Errorf("failed to decode seed listing: %w", err)
	}

	reader := csv.NewReader(decoded)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records []models.SeedRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed row is skipped, not fatal
			continue
		}

		rec, ok := recordFromRow(row)
		if ok {
			records = append(records, rec)
		}
	}

	if len(records) == 0 {
		return nil, ErrNoResults
	}
	return records, nil
}

// recordFromRow scans a row's columns: the access key may sit in any column,
// and a column is the key iff it is exactly 49 digits.
func recordFromRow(row []string) (models.SeedRecord, bool) {
	var rec models.SeedRecord
	for _, col := range row {
		if IsAccessKey(col) {
			rec.ClaveAcceso = strings.TrimSpace(col)
			break
		}
	}
	if rec.ClaveAcceso == "" {
		return rec, false
	}

	for _, col := range row {
		col = strings.TrimSpace(col)
		if rec.Tipo == "" && hasTipoPrefix(col) {
			rec.Tipo = col
		}
		if rec.Fecha == "" && fechaRe.MatchString(col) {
			rec.Fecha = col
		}
	}
	return rec, true
}

func hasTipoPrefix(col string) bool {
	lower := strings.ToLower(col)
	for _, prefix := range tipoPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
