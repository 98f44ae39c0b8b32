package normalizer

import (
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/sriaudit/comprobantes-api/internal/models"
)

// codigoIVA is the tax code identifying value-added tax on a totalImpuesto
// entry. The IVA column is the sum over all entries with this code, not just
// the first.
const codigoIVA = "2"

// thousandsRe accepts conventional 1,234,567.89 grouping. Anything else
// with separators degrades to zero instead of guessing.
var thousandsRe = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)

// Normalize parses one comprobante XML into a flat record. It never fails:
// parse problems are annotated on the record's Error field and missing
// fields stay zero-valued. Element lookups go by local name only, so any
// namespace prefix (or none) works across document versions.
func Normalize(data []byte, archivo string) models.Comprobante {
	rec := models.Comprobante{Archivo: archivo}

	fields, inner, err := walk(data)
	if err != nil {
		rec.Error = err.Error()
	}

	// Authorization envelopes wrap the actual comprobante XML in CDATA;
	// fields from the inner document win, the envelope fills the gaps
	// (notably claveAcceso).
	if inner != nil {
		innerFields, _, innerErr := walk(inner)
		if innerErr != nil && rec.Error == "" {
			rec.Error = innerErr.Error()
		}
		for k, v := range innerFields.values {
			fields.values[k] = v
		}
		if len(innerFields.ivaEntries) > 0 {
			fields.ivaEntries = innerFields.ivaEntries
		}
	}

	rec.ClaveAcceso = fields.get("claveAcceso")
	rec.FechaEmision = fields.get("fechaEmision")
	rec.RUCEmisor = fields.get("ruc")
	rec.RazonSocial = fields.get("razonSocial")
	rec.RUCReceptor = fields.get("identificacionComprador")
	rec.RazonSocialRecep = fields.get("razonSocialComprador")
	rec.CodDoc = fields.get("codDoc")
	rec.Subtotal = ParseAmount(fields.get("totalSinImpuestos"))
	rec.Total = ParseAmount(fields.get("importeTotal"))
	for _, v := range fields.ivaEntries {
		rec.IVA += ParseAmount(v)
	}

	return rec
}

// leaf element names captured by local name, first occurrence wins
var wantedFields = map[string]bool{
	"claveAcceso":             true,
	"fechaEmision":            true,
	"ruc":                     true,
	"razonSocial":             true,
	"identificacionComprador": true,
	"razonSocialComprador":    true,
	"codDoc":                  true,
	"totalSinImpuestos":       true,
	"importeTotal":            true,
}

type fieldSet struct {
	values     map[string]string
	ivaEntries []string
}

func (f fieldSet) get(name string) string {
	return strings.TrimSpace(f.values[name])
}

// walk scans the token stream collecting wanted leaves, IVA tax-line values
// and an embedded comprobante document if the envelope carries one.
func walk(data []byte) (fieldSet, []byte, error) {
	fields := fieldSet{values: map[string]string{}}
	var inner []byte

	dec := xml.NewDecoder(bytes.NewReader(data))
	// Portal XMLs show up in more encodings than UTF-8
	dec.CharsetReader = func(cs string, input io.Reader) (io.Reader, error) {
		return charset.NewReaderLabel(cs, input)
	}

	var text strings.Builder

	// state for the current totalImpuesto entry
	var inImpuesto bool
	var impuestoCodigo, impuestoValor string

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fields, inner, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			text.Reset()
			if t.Name.Local == "totalImpuesto" {
				inImpuesto = true
				impuestoCodigo, impuestoValor = "", ""
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			name := t.Name.Local
			value := text.String()
			text.Reset()

			if name == "comprobante" && strings.Contains(value, "<") && inner == nil {
				inner = []byte(strings.TrimSpace(value))
			}
			if wantedFields[name] {
				if _, seen := fields.values[name]; !seen && strings.TrimSpace(value) != "" {
					fields.values[name] = value
				}
			}
			if inImpuesto {
				switch name {
				case "codigo":
					impuestoCodigo = strings.TrimSpace(value)
				case "valor":
					impuestoValor = strings.TrimSpace(value)
				case "totalImpuesto":
					if impuestoCodigo == codigoIVA && impuestoValor != "" {
						fields.ivaEntries = append(fields.ivaEntries, impuestoValor)
					}
					inImpuesto = false
				}
			}
		}
	}

	return fields, inner, nil
}

// ParseAmount parses a monetary field defensively: plain float first, then
// thousands-separator stripping only for well-formed grouping, and 0.0 for
// anything else. It never returns an error.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	if thousandsRe.MatchString(s) {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			return v
		}
	}
	return 0
}
