package entities

// BarcodeQuality scores how trustworthy a merged barcode enrichment is.
// Each component is within [0, 1].
type BarcodeQuality struct {
	Completeness      float64 `json:"completeness"`
	SourceReliability float64 `json:"source_reliability"`
	DataFreshness     float64 `json:"data_freshness"`
}

// OverallScore is the weighted composite used to rank enrichment results
func (q BarcodeQuality) OverallScore() float64 {
	return Round2(0.4*q.Completeness + 0.4*q.SourceReliability + 0.2*q.DataFreshness)
}

// BarcodeEnrichmentResult is the ephemeral return value of the barcode
// merge engine. It is never persisted.
type BarcodeEnrichmentResult struct {
	Profile      NutrientProfile `json:"profile"`
	Quality      BarcodeQuality  `json:"quality"`
	ProductName  string          `json:"product_name,omitempty"`
	Brand        string          `json:"brand,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	BarcodeValue string          `json:"barcode_value,omitempty"`
}
