package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	req := DownloadRequest{RUC: "1710034065001", Clave: "x", Anio: 2024, Mes: 3}
	require.NoError(t, req.Normalize())

	assert.Equal(t, OrigenRecibidos, req.Origen)
	assert.Equal(t, "Facturas", req.Tipo)
	assert.Equal(t, []string{FormatoXML}, req.Formatos)
}

func TestNormalizeRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		req  DownloadRequest
	}{
		{"bad origen", DownloadRequest{Anio: 2024, Mes: 3, Origen: "Archivados"}},
		{"bad formato", DownloadRequest{Anio: 2024, Mes: 3, Formatos: []string{"DOCX"}}},
		{"month too low", DownloadRequest{Anio: 2024, Mes: 0}},
		{"month too high", DownloadRequest{Anio: 2024, Mes: 13}},
		{"year too early", DownloadRequest{Anio: 2014, Mes: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.req.Normalize())
		})
	}
}

func TestNormalizeAcceptsEmitidos(t *testing.T) {
	req := DownloadRequest{Anio: 2024, Mes: 12, Origen: OrigenEmitidos, Formatos: []string{FormatoXML, FormatoPDF}}
	require.NoError(t, req.Normalize())
	assert.Equal(t, OrigenEmitidos, req.Origen)
}

func TestWantsFormat(t *testing.T) {
	req := DownloadRequest{Formatos: []string{FormatoXML}}
	assert.True(t, req.WantsFormat(FormatoXML))
	assert.False(t, req.WantsFormat(FormatoPDF))
}

func TestFetchSummaryMerge(t *testing.T) {
	a := FetchSummary{NXML: 2, NPDF: 1, Failures: []ItemFailure{{ClaveAcceso: "x"}}}
	a.Merge(FetchSummary{NXML: 3, Failures: []ItemFailure{{ClaveAcceso: "y"}}})

	assert.Equal(t, 5, a.NXML)
	assert.Equal(t, 1, a.NPDF)
	assert.Len(t, a.Failures, 2)
}
