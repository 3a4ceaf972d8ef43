package providers

import (
	"context"
)

// BarcodeProduct is a per-100g product record returned by a barcode
// lookup source. Optional nutrient fields are nil when the source does
// not report them.
type BarcodeProduct struct {
	Barcode     string
	ProductName string
	Brand       string
	ImageURL    string
	Calories    int
	Protein     float64
	Carbs       float64
	Fat         float64
	Fiber       *float64
	Sugar       *float64
	Sodium      *float64
}

// BarcodeProductProvider looks up per-100g nutrient data for a barcode.
// A missing product surfaces as a NOT_FOUND AppError.
type BarcodeProductProvider interface {
	LookupBarcode(ctx context.Context, barcode string) (*BarcodeProduct, error)
}
