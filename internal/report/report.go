package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/sriaudit/comprobantes-api/internal/models"
)

// Sheet names match what downstream consumers of the original workbook expect
const (
	SheetDetalle = "Detalle"
	SheetTotales = "Totales por Emisor"
	SheetErrores = "Errores"
)

// TotalEmisor is one issuer's aggregated row
type TotalEmisor struct {
	RUCEmisor   string
	RazonSocial string
	Subtotal    float64
	IVA         float64
	Total       float64
}

// Report is the derived, read-only aggregation of a normalized batch
type Report struct {
	Detalle []models.Comprobante
	Totales []TotalEmisor
	Errores []models.Comprobante
}

// Build groups the records by issuer. Detail order is preserved; issuer
// groups appear in first-seen order; records without an issuer RUC still
// form their own group.
func Build(records []models.Comprobante) *Report {
	r := &Report{Detalle: records}

	index := map[string]int{}
	for _, rec := range records {
		if rec.Error != "" {
			r.Errores = append(r.Errores, rec)
		}

		key := rec.RUCEmisor + "\x00" + rec.RazonSocial
		i, ok := index[key]
		if !ok {
			i = len(r.Totales)
			index[key] = i
			r.Totales = append(r.Totales, TotalEmisor{
				RUCEmisor:   rec.RUCEmisor,
				RazonSocial: rec.RazonSocial,
			})
		}
		r.Totales[i].Subtotal += rec.Subtotal
		r.Totales[i].IVA += rec.IVA
		r.Totales[i].Total += rec.Total
	}

	return r
}

// WriteXLSX writes the workbook: Detalle, Totales por Emisor with a bar
// chart, and Errores only when there is something to show.
func (r *Report) WriteXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetDetalle); err != nil {
		return err
	}
	if err := r.writeDetalle(f); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetTotales); err != nil {
		return err
	}
	if err := r.writeTotales(f); err != nil {
		return err
	}

	if len(r.Errores) > 0 {
		if _, err := f.NewSheet(SheetErrores); err != nil {
			return err
		}
		if err := r.writeErrores(f); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

var detalleHeader = []interface{}{
	"Archivo", "Clave de acceso", "Fecha emisión", "RUC emisor", "Razón social",
	"RUC receptor", "Razón social receptor", "Cod. doc", "Subtotal", "IVA", "Total",
}

func (r *Report) writeDetalle(f *excelize.File) error {
	if err := writeRow(f, SheetDetalle, 1, detalleHeader); err != nil {
		return err
	}
	for i, rec := range r.Detalle {
		row := []interface{}{
			rec.Archivo, rec.ClaveAcceso, rec.FechaEmision, rec.RUCEmisor, rec.RazonSocial,
			rec.RUCReceptor, rec.RazonSocialRecep, rec.CodDoc, rec.Subtotal, rec.IVA, rec.Total,
		}
		if err := writeRow(f, SheetDetalle, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) writeTotales(f *excelize.File) error {
	header := []interface{}{"RUC emisor", "Razón social", "Subtotal", "IVA", "Total"}
	if err := writeRow(f, SheetTotales, 1, header); err != nil {
		return err
	}
	for i, t := range r.Totales {
		row := []interface{}{t.RUCEmisor, t.RazonSocial, t.Subtotal, t.IVA, t.Total}
		if err := writeRow(f, SheetTotales, i+2, row); err != nil {
			return err
		}
	}
	return r.addTotalesChart(f)
}

// addTotalesChart draws a bar chart of totals by issuer next to the table.
// Presentation only; a chart failure never fails the workbook.
func (r *Report) addTotalesChart(f *excelize.File) error {
	if len(r.Totales) == 0 {
		return nil
	}
	last := len(r.Totales) + 1
	err := f.AddChart(SheetTotales, "G2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("'%s'!$E$1", SheetTotales),
			Categories: fmt.Sprintf("'%s'!$B$2:$B$%d", SheetTotales, last),
			Values:     fmt.Sprintf("'%s'!$E$2:$E$%d", SheetTotales, last),
		}},
		Title: []excelize.RichTextRun{{Text: "Totales por emisor"}},
	})
	if err != nil {
		return nil
	}
	return nil
}

func (r *Report) writeErrores(f *excelize.File) error {
	header := []interface{}{"Archivo", "Clave de acceso", "Error"}
	if err := writeRow(f, SheetErrores, 1, header); err != nil {
		return err
	}
	for i, rec := range r.Errores {
		if err := writeRow(f, SheetErrores, i+2, []interface{}{rec.Archivo, rec.ClaveAcceso, rec.Error}); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
