package query

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/dataset"
)

func dated(r dataset.Record, year, month int) dataset.Record {
	r.Date = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	r.HasDate = true
	r.Year = year
	r.Month = month
	return r
}

func sampleDataset() *dataset.Dataset {
	return &dataset.Dataset{
		ID: "sample",
		Records: []dataset.Record{
			dated(dataset.Record{Seller: "A", Brand: "ACME", Category: "TOOLS", Client: "C1", Sale: 1000, Cost: 600, Units: 2}, 2024, 3),
			dated(dataset.Record{Seller: "A", Brand: "BETA", Category: "PAINT", Client: "C2", Sale: 500, Cost: 500, Units: 1}, 2024, 4),
			dated(dataset.Record{Seller: "B", Brand: "ACME", Category: "TOOLS", Client: "C1", Sale: 2000, Cost: 1000, Units: 5}, 2023, 3),
		},
		HasDates: true,
	}
}

func TestExecute_GroupBySellerSortedBySales(t *testing.T) {
	res := Execute(sampleDataset(), Intent{
		Metric:  MetricSales,
		GroupBy: GroupSeller,
		Sort:    Sort{By: MetricSales, Order: OrderDesc},
		Limit:   10,
	})

	require.Len(t, res.Rows, 2)
	b, a := res.Rows[0], res.Rows[1]

	assert.Equal(t, "B", b.Group)
	assert.InDelta(t, 2000, b.Sales, 1e-9)
	assert.InDelta(t, 1000, b.Profit, 1e-9)
	assert.InDelta(t, 50.0, b.MarginPct, 1e-9)
	assert.InDelta(t, 5, b.Units, 1e-9)
	assert.Equal(t, 1, b.DistinctClients)

	assert.Equal(t, "A", a.Group)
	assert.InDelta(t, 1500, a.Sales, 1e-9)
	assert.InDelta(t, 400, a.Profit, 1e-9)
	assert.InDelta(t, 26.67, a.MarginPct, 0.005)
	assert.InDelta(t, 3, a.Units, 1e-9)
	assert.Equal(t, 2, a.DistinctClients)
	assert.Equal(t, 2, a.Records)

	assert.Equal(t, "Top seller: B with sales of $ 2,000.00 (2 shown)", FormatAnswer(Intent{Metric: MetricSales}, res))
}

func TestExecute_MissingMonthIsNoData(t *testing.T) {
	in := Intent{Metric: MetricSales, GroupBy: GroupSeller, Filters: Filters{Month: IntPtr(12)}}
	res := Execute(sampleDataset(), in)

	assert.True(t, res.IsEmpty())
	assert.Equal(t, NoDataMessage, FormatAnswer(in, res))
}

func TestExecute_OutOfRangeMonthIsNoData(t *testing.T) {
	in := Intent{Metric: MetricSales, Filters: Filters{Month: IntPtr(13)}}
	res := Execute(sampleDataset(), in)

	assert.True(t, res.IsEmpty(), "an invalid month must not widen to every month")
	assert.Equal(t, NoDataMessage, FormatAnswer(in, res))
}

func TestExecute_Ungrouped(t *testing.T) {
	res := Execute(sampleDataset(), Intent{Metric: MetricSales, Filters: Filters{Year: IntPtr(2024)}})

	require.Len(t, res.Rows, 1)
	assert.False(t, res.Grouped())
	row := res.Rows[0]
	assert.InDelta(t, 1500, row.Sales, 1e-9)
	assert.Equal(t, 2, row.DistinctClients)
	assert.Equal(t,
		"Sales: $ 1,500.00 | Profit: $ 400.00 | Margin: 26.67% | Units: 3 | Clients: 2",
		FormatAnswer(Intent{}, res))
}

func TestExecute_NilDataset(t *testing.T) {
	assert.True(t, Execute(nil, Intent{}).IsEmpty())
}

func TestAggregate_SumsMatchAcrossGroupings(t *testing.T) {
	records := sampleDataset().Records
	total := Aggregate(records, GroupNone)[0].Sales

	for _, d := range Dimensions {
		var sum float64
		for _, row := range Aggregate(records, d) {
			sum += row.Sales
		}
		assert.InDelta(t, total, sum, 1e-9, "grouping by %s", d)
	}
}

func TestAggregate_BlankLabelsFormTheirOwnGroup(t *testing.T) {
	records := []dataset.Record{{Seller: "", Sale: 10}, {Seller: "A", Sale: 5}, {Seller: "", Sale: 1}}
	rows := Aggregate(records, GroupSeller)

	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[0].Group)
	assert.InDelta(t, 11, rows[0].Sales, 1e-9)
	assert.Equal(t, "A", rows[1].Group)
}

func TestAggregate_MarginAlwaysDefined(t *testing.T) {
	tests := []struct {
		name    string
		records []dataset.Record
	}{
		{name: "empty", records: nil},
		{name: "zero sales", records: []dataset.Record{{Sale: 0, Cost: 100}}},
		{name: "negative profit", records: []dataset.Record{{Sale: 10, Cost: 100}}},
	}

	for _, tc := range tests {
		rows := Aggregate(tc.records, GroupNone)
		require.Len(t, rows, 1, tc.name)
		m := rows[0].MarginPct
		assert.False(t, math.IsNaN(m) || math.IsInf(m, 0), tc.name)
		if rows[0].Sales == 0 {
			assert.Equal(t, 0.0, m, tc.name)
		}
	}
}

func TestFilter_Monotonic(t *testing.T) {
	records := sampleDataset().Records
	steps := []Filters{
		{},
		{Month: IntPtr(3)},
		{Month: IntPtr(3), Brand: "acm"},
		{Month: IntPtr(3), Brand: "acm", Seller: "b"},
		{Month: IntPtr(3), Brand: "acm", Seller: "b", Year: IntPtr(2024)},
	}

	prev := len(records) + 1
	for _, f := range steps {
		n := len(Filter(records, f))
		assert.LessOrEqual(t, n, prev, "%+v", f)
		prev = n
	}
	assert.Equal(t, 0, prev)
}

func TestFilter_DateFiltersSkipUndatedRecords(t *testing.T) {
	records := []dataset.Record{{Seller: "A", Sale: 1}, dated(dataset.Record{Seller: "A", Sale: 2}, 2024, 1)}

	got := Filter(records, Filters{Year: IntPtr(2024)})
	require.Len(t, got, 1)
	assert.InDelta(t, 2, got[0].Sale, 1e-9)

	assert.Len(t, Filter(records, Filters{Seller: " a "}), 2, "contains filter is case-insensitive and trimmed")
}

func TestSortAndLimit(t *testing.T) {
	rows := []Row{
		{Group: "x", Sales: 10, Units: 3},
		{Group: "y", Sales: 30, Units: 1},
		{Group: "z", Sales: 20, Units: 3},
	}

	tests := []struct {
		name     string
		sort     Sort
		limit    int
		expected []string
	}{
		{name: "sales desc", sort: Sort{By: MetricSales, Order: OrderDesc}, limit: 10, expected: []string{"y", "z", "x"}},
		{name: "sales asc limited", sort: Sort{By: MetricSales, Order: OrderAsc}, limit: 2, expected: []string{"x", "z"}},
		{name: "stable on ties", sort: Sort{By: MetricUnits, Order: OrderDesc}, limit: 10, expected: []string{"x", "z", "y"}},
		{name: "unknown field falls back", sort: Sort{By: "revenue", Order: OrderAsc}, limit: 10, expected: []string{"y", "z", "x"}},
	}

	for _, tc := range tests {
		got := SortAndLimit(rows, tc.sort, tc.limit)
		groups := make([]string, len(got))
		for i, r := range got {
			groups[i] = r.Group
		}
		assert.Equal(t, tc.expected, groups, tc.name)
		assert.LessOrEqual(t, len(got), tc.limit, tc.name)
	}
	assert.Equal(t, "x", rows[0].Group, "input is not reordered")
}

func TestExecute_UnknownSortFallsBackToSalesDesc(t *testing.T) {
	res := Execute(sampleDataset(), Intent{
		Metric:  "revenue",
		GroupBy: "brand",
		Sort:    Sort{By: "revenue", Order: "asc"},
		Limit:   1,
	})
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "ACME", res.Rows[0].Group)
}
