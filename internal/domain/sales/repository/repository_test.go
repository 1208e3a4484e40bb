package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/sales-insight/internal/domain/common"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/loader"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/normalizer"
)

func TestProfile_RoundTripsOptions(t *testing.T) {
	opts := loader.Options{
		Delimiter: ',',
		Encoding:  loader.EncodingUTF8,
		Policy:    normalizer.PolicyDotIsDecimal,
		Columns:   loader.ColumnMapping{Sale: "Net", Seller: "Rep", Date: "Day"},
	}
	p := NewProfile("fp", "", opts)
	assert.Nil(t, p.Name)
	require.NotNil(t, p.DateCol)

	got := p.Apply(loader.DefaultOptions())
	assert.Equal(t, ',', got.Delimiter)
	assert.Equal(t, loader.EncodingUTF8, got.Encoding)
	assert.Equal(t, normalizer.PolicyDotIsDecimal, got.Policy)
	assert.Equal(t, "Net", got.Columns.Sale)
	assert.Equal(t, "Rep", got.Columns.Seller)
	assert.Equal(t, "Costo", got.Columns.Cost, "unset roles fall back to the base mapping")
}

func TestProfile_ApplyIgnoresInvalidFields(t *testing.T) {
	p := &ColumnProfile{Delimiter: ";;", ThousandsPolicy: "bogus"}
	base := loader.DefaultOptions()
	base.Policy = normalizer.PolicyDotIsThousands

	got := p.Apply(base)
	assert.Equal(t, ';', got.Delimiter)
	assert.Equal(t, normalizer.PolicyDotIsThousands, got.Policy)
	assert.Equal(t, base.Columns, got.Columns)
}

func TestMemoryProfileRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryProfileRepository()

	_, err := repo.GetByFingerprint(ctx, "fp")
	assert.ErrorIs(t, err, common.ErrProfileNotFound)

	first := &ColumnProfile{Fingerprint: "fp", SaleCol: "Total"}
	require.NoError(t, repo.Save(ctx, first))
	second := &ColumnProfile{Fingerprint: "fp", SaleCol: "Neto"}
	require.NoError(t, repo.Save(ctx, second))
	assert.Equal(t, first.ID, second.ID, "save replaces by fingerprint")

	got, err := repo.GetByFingerprint(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, "Neto", got.SaleCol)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, "fp"))
	assert.ErrorIs(t, repo.Delete(ctx, "fp"), common.ErrProfileNotFound)
}
