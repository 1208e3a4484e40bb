package interpret

import (
	"sort"

	"github.com/samber/lo"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/dataset"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/query"
)

// MaxLabels caps how many distinct labels per dimension are listed in a summary.
const MaxLabels = 50

// LabelTotal is a group label with its sales.
type LabelTotal struct {
	Label string  `json:"label"`
	Sales float64 `json:"sales"`
}

// Summary is what the assistant sees of a dataset: totals, rankings and the
// labels it may filter on. Raw rows are never sent.
type Summary struct {
	Name            string       `json:"name,omitempty"`
	Records         int          `json:"records"`
	TotalSales      float64      `json:"total_sales"`
	TotalCost       float64      `json:"total_cost"`
	TotalProfit     float64      `json:"total_profit"`
	MarginPct       float64      `json:"margin_pct"`
	Units           float64      `json:"units"`
	DistinctClients int          `json:"distinct_clients"`
	Years           []int        `json:"years,omitempty"`
	Sellers         []string     `json:"sellers,omitempty"`
	Brands          []string     `json:"brands,omitempty"`
	Categories      []string     `json:"categories,omitempty"`
	TopSellers      []LabelTotal `json:"top_sellers,omitempty"`
	TopBrands       []LabelTotal `json:"top_brands,omitempty"`
	TopCategories   []LabelTotal `json:"top_categories,omitempty"`
}

// Summarize builds the summary for ds with rankings of length top.
func Summarize(ds *dataset.Dataset, top int) Summary {
	if ds == nil || len(ds.Records) == 0 {
		return Summary{}
	}
	if top <= 0 {
		top = 5
	}

	total := query.Aggregate(ds.Records, query.GroupNone)[0]
	years := ds.Years()
	sort.Ints(years)

	return Summary{
		Name:            ds.Name,
		Records:         len(ds.Records),
		TotalSales:      total.Sales,
		TotalCost:       total.Cost,
		TotalProfit:     total.Profit,
		MarginPct:       total.MarginPct,
		Units:           total.Units,
		DistinctClients: total.DistinctClients,
		Years:           years,
		Sellers:         labels(ds.Records, func(r dataset.Record) string { return r.Seller }),
		Brands:          labels(ds.Records, func(r dataset.Record) string { return r.Brand }),
		Categories:      labels(ds.Records, func(r dataset.Record) string { return r.Category }),
		TopSellers:      ranking(ds.Records, query.GroupSeller, top),
		TopBrands:       ranking(ds.Records, query.GroupBrand, top),
		TopCategories:   ranking(ds.Records, query.GroupCategory, top),
	}
}

func labels(records []dataset.Record, field func(dataset.Record) string) []string {
	all := lo.Uniq(lo.Compact(lo.Map(records, func(r dataset.Record, _ int) string { return field(r) })))
	sort.Strings(all)
	if len(all) > MaxLabels {
		all = all[:MaxLabels]
	}
	return all
}

func ranking(records []dataset.Record, d query.Dimension, top int) []LabelTotal {
	rows := query.Aggregate(records, d)
	rows = lo.Filter(rows, func(r query.Row, _ int) bool { return r.Group != "" })
	rows = query.SortAndLimit(rows, query.Sort{By: query.MetricSales, Order: query.OrderDesc}, top)
	return lo.Map(rows, func(r query.Row, _ int) LabelTotal {
		return LabelTotal{Label: r.Group, Sales: r.Sales}
	})
}
