package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const facturaXML = `<?xml version="1.0" encoding="UTF-8"?>
<factura id="comprobante" version="1.1.0">
  <infoTributaria>
    <ruc>1790011674001</ruc>
    <razonSocial>ACME CIA LTDA</razonSocial>
    <claveAcceso>0902202401179001167400110010010000000011234567813</claveAcceso>
    <codDoc>01</codDoc>
  </infoTributaria>
  <infoFactura>
    <fechaEmision>09/02/2024</fechaEmision>
    <identificacionComprador>1710034065001</identificacionComprador>
    <razonSocialComprador>CLIENTE S.A.</razonSocialComprador>
    <totalSinImpuestos>100</totalSinImpuestos>
    <totalConImpuestos>
      <totalImpuesto>
        <codigo>2</codigo>
        <codigoPorcentaje>2</codigoPorcentaje>
        <baseImponible>100</baseImponible>
        <valor>12</valor>
      </totalImpuesto>
    </totalConImpuestos>
    <importeTotal>112</importeTotal>
  </infoFactura>
</factura>`

func TestNormalizeFactura(t *testing.T) {
	rec := Normalize([]byte(facturaXML), "f.xml")

	assert.Empty(t, rec.Error)
	assert.Equal(t, "f.xml", rec.Archivo)
	assert.Equal(t, "0902202401179001167400110010010000000011234567813", rec.ClaveAcceso)
	assert.Equal(t, "09/02/2024", rec.FechaEmision)
	assert.Equal(t, "1790011674001", rec.RUCEmisor)
	assert.Equal(t, "ACME CIA LTDA", rec.RazonSocial)
	assert.Equal(t, "1710034065001", rec.RUCReceptor)
	assert.Equal(t, "CLIENTE S.A.", rec.RazonSocialRecep)
	assert.Equal(t, "01", rec.CodDoc)
	assert.Equal(t, 100.0, rec.Subtotal)
	assert.Equal(t, 12.0, rec.IVA)
	assert.Equal(t, 112.0, rec.Total)
}

func TestNormalizeSumsIVAEntries(t *testing.T) {
	xml := `<factura>
  <totalSinImpuestos>200</totalSinImpuestos>
  <totalConImpuestos>
    <totalImpuesto><codigo>2</codigo><valor>12</valor></totalImpuesto>
    <totalImpuesto><codigo>3</codigo><valor>99</valor></totalImpuesto>
    <totalImpuesto><codigo>2</codigo><valor>15</valor></totalImpuesto>
  </totalConImpuestos>
  <importeTotal>227</importeTotal>
</factura>`

	rec := Normalize([]byte(xml), "f.xml")
	assert.Equal(t, 27.0, rec.IVA)
	assert.Equal(t, 227.0, rec.Total)
}

func TestNormalizeAuthorizationEnvelope(t *testing.T) {
	xml := `<autorizacion>
  <estado>AUTORIZADO</estado>
  <claveAcceso>1111111111111111111111111111111111111111111111111</claveAcceso>
  <comprobante><![CDATA[<?xml version="1.0"?>
<factura>
  <infoTributaria>
    <ruc>1790011674001</ruc>
    <razonSocial>ACME CIA LTDA</razonSocial>
  </infoTributaria>
  <infoFactura>
    <totalSinImpuestos>50</totalSinImpuestos>
    <totalConImpuestos>
      <totalImpuesto><codigo>2</codigo><valor>6</valor></totalImpuesto>
    </totalConImpuestos>
    <importeTotal>56</importeTotal>
  </infoFactura>
</factura>]]></comprobante>
</autorizacion>`

	rec := Normalize([]byte(xml), "a.xml")

	// Envelope fills claveAcceso, inner document provides the rest
	assert.Equal(t, "1111111111111111111111111111111111111111111111111", rec.ClaveAcceso)
	assert.Equal(t, "1790011674001", rec.RUCEmisor)
	assert.Equal(t, 50.0, rec.Subtotal)
	assert.Equal(t, 6.0, rec.IVA)
	assert.Equal(t, 56.0, rec.Total)
}

func TestNormalizeNamespacePrefixes(t *testing.T) {
	xml := `<ns2:factura xmlns:ns2="http://example.invalid/ns">
  <ns2:infoTributaria>
    <ns2:ruc>1790011674001</ns2:ruc>
  </ns2:infoTributaria>
  <ns2:infoFactura>
    <ns2:totalSinImpuestos>10</ns2:totalSinImpuestos>
    <ns2:importeTotal>11.2</ns2:importeTotal>
  </ns2:infoFactura>
</ns2:factura>`

	rec := Normalize([]byte(xml), "n.xml")
	assert.Equal(t, "1790011674001", rec.RUCEmisor)
	assert.Equal(t, 10.0, rec.Subtotal)
	assert.Equal(t, 11.2, rec.Total)
}

func TestNormalizeMalformedAnnotatesError(t *testing.T) {
	rec := Normalize([]byte("<factura><ruc>179"), "bad.xml")
	assert.NotEmpty(t, rec.Error)
	assert.Equal(t, "bad.xml", rec.Archivo)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"112.50", 112.5},
		{"112", 112},
		{"-3.5", -3.5},
		{"1,234.56", 1234.56},
		{"12,345,678.9", 12345678.9},
		{"12,34.5", 0},
		{"1,23", 0},
		{"", 0},
		{"abc", 0},
		{"  42.0  ", 42},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAmount(tt.in))
		})
	}
}
