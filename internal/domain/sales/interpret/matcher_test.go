package interpret

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/dataset"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/query"
)

func TestKeywordMatcher_Category(t *testing.T) {
	m := NewKeywordMatcher(nil)

	tests := []struct {
		question string
		expected query.Category
	}{
		{"¿Qué marca tiene el mejor margen?", query.CategoryBestMarginBrand},
		{"Rubro con MEJOR margen", query.CategoryBestMarginCategory},
		{"peor margen del año", query.CategoryWorstMarginBrand},
		{"Ganancia por vendedor", query.CategoryProfitBySeller},
		{"ventas por vendedor en marzo", query.CategorySalesBySeller},
		{"Top brands in 2024", query.CategoryTopBrands},
		{"mejores clientes", query.CategoryTopClients},
		{"¿Cuánto vendimos?", query.CategoryTotalSummary},
		{"clientes por vendedor", query.CategoryClientsBySeller},
	}

	for _, tc := range tests {
		got, ok := m.Category(tc.question)
		assert.True(t, ok, tc.question)
		assert.Equal(t, tc.expected, got, tc.question)
	}

	_, ok := m.Category("what's the weather like?")
	assert.False(t, ok)
}

func sellersDataset() *dataset.Dataset {
	return &dataset.Dataset{Records: []dataset.Record{
		{Seller: "JUAN PÉREZ", Brand: "ACME", Client: "FERRETERÍA SUR"},
		{Seller: "ANA", Brand: "BETA", Client: "ACME SA"},
	}}
}

func TestKeywordMatcher_MatchExtractsFilters(t *testing.T) {
	m := NewKeywordMatcher(nil)

	in, ok := m.Match("Top 3 marcas con mejor margen en marzo 2024", sellersDataset())
	require.True(t, ok)
	assert.Equal(t, query.MetricMarginPct, in.Metric)
	assert.Equal(t, query.GroupBrand, in.GroupBy)
	assert.Equal(t, 3, in.Limit)
	require.NotNil(t, in.Filters.Month)
	assert.Equal(t, 3, *in.Filters.Month)
	require.NotNil(t, in.Filters.Year)
	assert.Equal(t, 2024, *in.Filters.Year)
	assert.Empty(t, in.Filters.Brand, "stop words are not names")

	in, ok = m.Match("ventas totales del vendedor Pérez", sellersDataset())
	require.True(t, ok)
	assert.Equal(t, query.GroupNone, in.GroupBy)
	assert.Equal(t, "PÉREZ", in.Filters.Seller, "names are spelled as in the dataset")
}

func TestKeywordMatcher_MatchKeepsGroupingForUnknownNames(t *testing.T) {
	m := NewKeywordMatcher(nil)

	in, ok := m.Match("ventas por vendedor marzo 2024", sellersDataset())
	require.True(t, ok)
	assert.Equal(t, query.GroupSeller, in.GroupBy)
	assert.Empty(t, in.Filters.Seller)
	require.NotNil(t, in.Filters.Month)
	assert.Equal(t, 3, *in.Filters.Month)
	require.NotNil(t, in.Filters.Year)
	assert.Equal(t, 2024, *in.Filters.Year)
}

func TestKeywordMatcher_MatchLeavesUncoveredQuestions(t *testing.T) {
	m := NewKeywordMatcher(nil)

	tests := []string{
		"Which seller had the lowest sales?",
		"Which brand has the most sales this year?",
		"What are the sales to client Acme?",
		"ventas totales del cliente Acme",
		"ventas totales del vendedor Gómez",
		"ventas por vendedor con menor margen",
		"ventas por vendedor en la zona norte",
		"sales",
		"total",
	}

	for _, q := range tests {
		in, ok := m.Match(q, sellersDataset())
		assert.False(t, ok, "%s matched as %+v", q, in)
	}

	_, ok := m.Match("ventas totales del vendedor Pérez", nil)
	assert.False(t, ok, "a name cannot be resolved without a dataset")

	in, ok := m.Match("peor margen en marzo", sellersDataset())
	require.True(t, ok, "ascending catalog intents keep their qualifier")
	assert.Equal(t, query.OrderAsc, in.Sort.Order)
}

func TestKeywordMatcher_CustomPhrases(t *testing.T) {
	m := NewKeywordMatcher([]Phrase{{Category: query.CategoryTopClients, Keywords: []string{"Quiénes compran más"}}})

	got, ok := m.Category("quienes compran mas")
	require.True(t, ok)
	assert.Equal(t, query.CategoryTopClients, got)

	_, ok = m.Category("ventas")
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	ds := &dataset.Dataset{
		Name: "ventas.csv",
		Records: []dataset.Record{
			{Seller: "ANA", Brand: "ACME", Client: "C1", Sale: 100, Cost: 50, Units: 1, HasDate: true, Year: 2024},
			{Seller: "LUIS", Brand: "ACME", Client: "C2", Sale: 300, Cost: 100, Units: 2, HasDate: true, Year: 2023},
			{Seller: "ANA", Brand: "", Client: "C1", Sale: 50, Cost: 0, Units: 1},
		},
	}

	s := Summarize(ds, 1)
	assert.Equal(t, 3, s.Records)
	assert.InDelta(t, 450, s.TotalSales, 1e-9)
	assert.InDelta(t, 300, s.TotalProfit, 1e-9)
	assert.Equal(t, 2, s.DistinctClients)
	assert.Equal(t, []int{2023, 2024}, s.Years)
	assert.Equal(t, []string{"ANA", "LUIS"}, s.Sellers)
	assert.Equal(t, []string{"ACME"}, s.Brands)
	assert.Equal(t, []LabelTotal{{Label: "LUIS", Sales: 300}}, s.TopSellers)
	assert.Equal(t, []LabelTotal{{Label: "ACME", Sales: 400}}, s.TopBrands)
	assert.Empty(t, s.TopCategories)

	assert.Equal(t, Summary{}, Summarize(nil, 5))
}

func TestBuildIntentPrompt(t *testing.T) {
	prompt := BuildIntentPrompt("  ventas por vendedor ", Summary{Records: 2, Sellers: []string{"ANA"}})

	assert.True(t, strings.HasSuffix(prompt, "QUESTION: ventas por vendedor\n"))
	assert.Contains(t, prompt, `"distinct_clients"`)
	assert.Contains(t, prompt, `"category"`)
	assert.Contains(t, prompt, `"ANA"`)
	assert.NotContains(t, BuildIntentPrompt("x", Summary{}), "DATA SUMMARY")
}
