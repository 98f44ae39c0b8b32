package emitidos

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clave = "0902202401179001167400110010010000000011234567813"

func newTestScraper() *Scraper {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewScraper(0, logger)
}

func TestParseResultsTable(t *testing.T) {
	html := `<html><body>
	<table><tr><td>menu</td><td>decorativo</td></tr></table>
	<table>
	  <tr><th>Clave</th><th>Fecha</th><th>Receptor</th><th>Subtotal</th><th>IVA</th><th>Total</th></tr>
	  <tr><td>` + clave + `</td><td>09/02/2024</td><td>CLIENTE UNO S.A.</td><td>100.00</td><td>12.00</td><td>112.00</td></tr>
	  <tr><td>fila sin clave</td><td>10/02/2024</td></tr>
	</table>
	</body></html>`

	records, err := newTestScraper().ParseResultsTable(html)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, clave, rec.ClaveAcceso)
	assert.Equal(t, "09/02/2024", rec.FechaEmision)
	assert.Equal(t, "CLIENTE UNO S.A.", rec.RazonSocial)
	assert.Equal(t, 100.0, rec.Subtotal)
	assert.Equal(t, 12.0, rec.IVA)
	assert.Equal(t, 112.0, rec.Total)
}

func TestParseResultsTableNoTable(t *testing.T) {
	_, err := newTestScraper().ParseResultsTable("<html><body><p>sin resultados</p></body></html>")
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestParseResultsTableSingleAmount(t *testing.T) {
	html := `<table><tr><td>` + clave + `</td><td>50.00</td></tr></table>`

	records, err := newTestScraper().ParseResultsTable(html)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, 50.0, records[0].Subtotal)
	assert.Equal(t, 50.0, records[0].Total)
}
