package service

import (
	"fmt"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/loader"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/normalizer"
	"github.com/FACorreiaa/sales-insight/pkg/config"
)

// NewOptions builds service options from the import settings.
func NewOptions(cfg config.ImportConfig, narrate bool) (Options, error) {
	load := loader.DefaultOptions()

	if cfg.Delimiter != "" {
		r := []rune(cfg.Delimiter)
		if len(r) != 1 {
			return Options{}, fmt.Errorf("delimiter must be a single character, got %q", cfg.Delimiter)
		}
		load.Delimiter = r[0]
	}
	if cfg.Encoding != "" {
		load.Encoding = cfg.Encoding
	}
	if cfg.ThousandsPolicy != "" {
		policy, err := normalizer.ParsePolicy(cfg.ThousandsPolicy)
		if err != nil {
			return Options{}, err
		}
		load.Policy = policy
	}
	load.Workers = cfg.Workers
	load.Columns = loader.ColumnMapping{
		Sale:     cfg.SaleColumn,
		Cost:     cfg.CostColumn,
		Quantity: cfg.QuantityColumn,
		Seller:   cfg.SellerColumn,
		Brand:    cfg.BrandColumn,
		Category: cfg.CategoryColumn,
		Client:   cfg.ClientColumn,
		Date:     cfg.DateColumn,
	}.Merge(loader.DefaultColumns())

	return Options{Load: load, MaxBytes: cfg.MaxBytes, Narrate: narrate}, nil
}
