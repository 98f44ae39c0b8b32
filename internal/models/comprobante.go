package models

// SeedRecord is one row extracted from the portal's seed TXT listing. The
// access key (49 digits) is the only mandatory field; tipo and fecha are
// opportunistic extras when the listing carries them.
type SeedRecord struct {
	ClaveAcceso string `json:"clave"`
	Tipo        string `json:"tipo,omitempty"`
	Fecha       string `json:"fecha,omitempty"`
}

// Comprobante is a normalized electronic tax document parsed from its XML
// representation. Missing or unparseable fields stay zero-valued; Error
// carries the parse annotation instead of aborting the batch.
type Comprobante struct {
	Archivo          string  `json:"archivo"`
	ClaveAcceso      string  `json:"clave_acceso"`
	FechaEmision     string  `json:"fecha"`
	RUCEmisor        string  `json:"ruc_emisor"`
	RazonSocial      string  `json:"razon_social"`
	RUCReceptor      string  `json:"ruc_receptor,omitempty"`
	RazonSocialRecep string  `json:"razon_social_receptor,omitempty"`
	CodDoc           string  `json:"cod_doc,omitempty"`
	Subtotal         float64 `json:"subtotal"`
	IVA              float64 `json:"iva"`
	Total            float64 `json:"total"`
	Error            string  `json:"error,omitempty"`
}
