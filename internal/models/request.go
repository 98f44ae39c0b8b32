package models

import "fmt"

// Document sources on the portal. Received and issued documents live on two
// distinct modules with different page structures.
const (
	OrigenRecibidos = "Recibidos"
	OrigenEmitidos  = "Emitidos"
)

// Download formats
const (
	FormatoXML = "XML"
	FormatoPDF = "PDF"
)

// TiposComprobante maps request document types to the labels visible on the
// portal's type selector.
var TiposComprobante = map[string]string{
	"Facturas":              "Factura",
	"Retenciones":           "Comprobante de Retención",
	"Notas de crédito":      "Notas de Crédito",
	"Notas de débito":       "Notas de Débito",
	"Liquidación de compra": "Liquidación de compra de bienes y prestación de servicios",
}

// DownloadRequest is a request to retrieve one taxpayer's comprobantes for a
// period. Clave is the portal password, not the access key of a document.
type DownloadRequest struct {
	RUC      string   `json:"ruc" binding:"required"`
	Clave    string   `json:"clave" binding:"required"`
	Anio     int      `json:"anio" binding:"required"`
	Mes      int      `json:"mes" binding:"required"`
	Tipo     string   `json:"tipo"`
	Origen   string   `json:"origen"`
	Formatos []string `json:"formatos"`
	// ForceLogin skips session reuse and performs a fresh interactive login.
	ForceLogin bool `json:"force_login"`
}

// Normalize fills defaults and validates enum-like fields.
func (r *DownloadRequest) Normalize() error {
	if r.Origen == "" {
		r.Origen = OrigenRecibidos
	}
	if r.Origen != OrigenRecibidos && r.Origen != OrigenEmitidos {
		return fmt.Errorf("origen inválido: %q", r.Origen)
	}
	if r.Tipo == "" {
		r.Tipo = "Facturas"
	}
	if len(r.Formatos) == 0 {
		r.Formatos = []string{FormatoXML}
	}
	for _, f := range r.Formatos {
		if f != FormatoXML && f != FormatoPDF {
			return fmt.Errorf("formato inválido: %q", f)
		}
	}
	if r.Mes < 1 || r.Mes > 12 {
		return fmt.Errorf("mes fuera de rango: %d", r.Mes)
	}
	if r.Anio < 2015 {
		return fmt.Errorf("año fuera de rango: %d", r.Anio)
	}
	return nil
}

// WantsFormat reports whether the request asked for the given format.
func (r *DownloadRequest) WantsFormat(formato string) bool {
	for _, f := range r.Formatos {
		if f == formato {
			return true
		}
	}
	return false
}
