package models

import "time"

// Run states surfaced to callers. An empty period is a valid outcome
// (sin_descargas), not an error; degradado marks results produced by the
// HTML-table fallback whose filters may not have applied.
const (
	EstadoOK           = "ok"
	EstadoSinDescargas = "sin_descargas"
	EstadoDegradado    = "degradado"
	EstadoError        = "error"
)

// ItemFailure records one document whose XML/PDF could not be retrieved.
// Failures are isolated; they never abort the batch.
type ItemFailure struct {
	ClaveAcceso string `json:"clave"`
	Motivo      string `json:"motivo"`
}

// FetchSummary accumulates per-item download results.
type FetchSummary struct {
	NXML     int           `json:"n_xml"`
	NPDF     int           `json:"n_pdf"`
	Failures []ItemFailure `json:"fallos,omitempty"`
}

// Merge folds another summary into this one (used when pool workers drain).
func (s *FetchSummary) Merge(other FetchSummary) {
	s.NXML += other.NXML
	s.NPDF += other.NPDF
	s.Failures = append(s.Failures, other.Failures...)
}

// DownloadSummary is the structured result of one retrieval run.
type DownloadSummary struct {
	ID           string        `json:"id"`
	Estado       string        `json:"estado"`
	Origen       string        `json:"origen"`
	NXML         int           `json:"n_xml"`
	NPDF         int           `json:"n_pdf"`
	NRegistros   int           `json:"n_registros"`
	TXTPath      string        `json:"txt,omitempty"`
	ReportePath  string        `json:"reporte,omitempty"`
	DestinoPath  string        `json:"destino,omitempty"`
	Warnings     []string      `json:"advertencias,omitempty"`
	Failures     []ItemFailure `json:"fallos,omitempty"`
	Mensaje      string        `json:"mensaje,omitempty"`
	Duracion     string        `json:"duracion,omitempty"`
	FinalizadoEn time.Time     `json:"finalizado_en"`
}
