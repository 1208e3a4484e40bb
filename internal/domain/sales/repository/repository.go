// Package repository stores learned column profiles, so that a repeated export
// layout is read the same way without configuration.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/loader"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/normalizer"
)

// ColumnProfile is the stored reading configuration for one header layout.
type ColumnProfile struct {
	ID              uuid.UUID `db:"id"`
	Fingerprint     string    `db:"fingerprint"`
	Name            *string   `db:"name"`
	Delimiter       string    `db:"delimiter"`
	Encoding        string    `db:"encoding"`
	ThousandsPolicy string    `db:"thousands_policy"`
	SaleCol         string    `db:"sale_col"`
	CostCol         string    `db:"cost_col"`
	QuantityCol     string    `db:"quantity_col"`
	SellerCol       string    `db:"seller_col"`
	BrandCol        string    `db:"brand_col"`
	CategoryCol     string    `db:"category_col"`
	ClientCol       string    `db:"client_col"`
	DateCol         *string   `db:"date_col"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// ProfileRepository defines data access for column profiles.
type ProfileRepository interface {
	// GetByFingerprint returns common.ErrProfileNotFound when nothing is stored.
	GetByFingerprint(ctx context.Context, fingerprint string) (*ColumnProfile, error)
	// Save inserts or replaces the profile for its fingerprint.
	Save(ctx context.Context, profile *ColumnProfile) error
	List(ctx context.Context) ([]*ColumnProfile, error)
	Delete(ctx context.Context, fingerprint string) error
}

// NewProfile builds a profile from loader options.
func NewProfile(fingerprint, name string, opts loader.Options) *ColumnProfile {
	c := opts.Columns
	p := &ColumnProfile{
		Fingerprint:     fingerprint,
		Delimiter:       string(opts.Delimiter),
		Encoding:        opts.Encoding,
		ThousandsPolicy: opts.Policy.String(),
		SaleCol:         c.Sale,
		CostCol:         c.Cost,
		QuantityCol:     c.Quantity,
		SellerCol:       c.Seller,
		BrandCol:        c.Brand,
		CategoryCol:     c.Category,
		ClientCol:       c.Client,
	}
	if name != "" {
		p.Name = &name
	}
	if c.Date != "" {
		date := c.Date
		p.DateCol = &date
	}
	return p
}

// Columns returns the stored column mapping.
func (p *ColumnProfile) Columns() loader.ColumnMapping {
	m := loader.ColumnMapping{
		Sale:     p.SaleCol,
		Cost:     p.CostCol,
		Quantity: p.QuantityCol,
		Seller:   p.SellerCol,
		Brand:    p.BrandCol,
		Category: p.CategoryCol,
		Client:   p.ClientCol,
	}
	if p.DateCol != nil {
		m.Date = *p.DateCol
	}
	return m
}

// Apply overlays the profile on base; fields the profile leaves empty or
// invalid keep base's values.
func (p *ColumnProfile) Apply(base loader.Options) loader.Options {
	out := base
	if r := []rune(p.Delimiter); len(r) == 1 {
		out.Delimiter = r[0]
	}
	if p.Encoding != "" {
		out.Encoding = p.Encoding
	}
	if policy, err := normalizer.ParsePolicy(p.ThousandsPolicy); err == nil && p.ThousandsPolicy != "" {
		out.Policy = policy
	}
	out.Columns = p.Columns().Merge(base.Columns)
	return out
}
