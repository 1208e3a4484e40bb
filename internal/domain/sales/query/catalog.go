package query

import "slices"

// Category names a recognized kind of question independent of its phrasing.
type Category string

const (
	CategoryTotalSummary       Category = "total_summary"
	CategorySalesBySeller      Category = "sales_by_seller"
	CategoryProfitBySeller     Category = "profit_by_seller"
	CategoryMarginBySeller     Category = "margin_by_seller"
	CategoryBestMarginBrand    Category = "best_margin_brand"
	CategoryWorstMarginBrand   Category = "worst_margin_brand"
	CategoryBestMarginCategory Category = "best_margin_category"
	CategoryTopBrands          Category = "top_brands"
	CategoryTopCategories      Category = "top_categories"
	CategoryTopClients         Category = "top_clients"
	CategoryUnitsByBrand       Category = "units_by_brand"
	CategoryClientsBySeller    Category = "clients_by_seller"
)

// Catalog maps each category to the aggregation that answers it.
var Catalog = map[Category]Intent{
	CategoryTotalSummary: {Metric: MetricSales, GroupBy: GroupNone},
	CategorySalesBySeller: {
		Metric: MetricSales, GroupBy: GroupSeller,
		Sort: Sort{By: MetricSales, Order: OrderDesc}, Limit: DefaultLimit,
	},
	CategoryProfitBySeller: {
		Metric: MetricProfit, GroupBy: GroupSeller,
		Sort: Sort{By: MetricProfit, Order: OrderDesc}, Limit: DefaultLimit,
	},
	CategoryMarginBySeller: {
		Metric: MetricMarginPct, GroupBy: GroupSeller,
		Sort: Sort{By: MetricMarginPct, Order: OrderDesc}, Limit: DefaultLimit,
	},
	CategoryBestMarginBrand: {
		Metric: MetricMarginPct, GroupBy: GroupBrand,
		Sort: Sort{By: MetricMarginPct, Order: OrderDesc}, Limit: 5,
	},
	CategoryWorstMarginBrand: {
		Metric: MetricMarginPct, GroupBy: GroupBrand,
		Sort: Sort{By: MetricMarginPct, Order: OrderAsc}, Limit: 5,
	},
	CategoryBestMarginCategory: {
		Metric: MetricMarginPct, GroupBy: GroupCategory,
		Sort: Sort{By: MetricMarginPct, Order: OrderDesc}, Limit: 5,
	},
	CategoryTopBrands: {
		Metric: MetricSales, GroupBy: GroupBrand,
		Sort: Sort{By: MetricSales, Order: OrderDesc}, Limit: DefaultLimit,
	},
	CategoryTopCategories: {
		Metric: MetricSales, GroupBy: GroupCategory,
		Sort: Sort{By: MetricSales, Order: OrderDesc}, Limit: DefaultLimit,
	},
	CategoryTopClients: {
		Metric: MetricSales, GroupBy: GroupClient,
		Sort: Sort{By: MetricSales, Order: OrderDesc}, Limit: DefaultLimit,
	},
	CategoryUnitsByBrand: {
		Metric: MetricUnits, GroupBy: GroupBrand,
		Sort: Sort{By: MetricUnits, Order: OrderDesc}, Limit: DefaultLimit,
	},
	CategoryClientsBySeller: {
		Metric: MetricDistinctClients, GroupBy: GroupSeller,
		Sort: Sort{By: MetricDistinctClients, Order: OrderDesc}, Limit: DefaultLimit,
	},
}

// Lookup returns the normalized intent template for a category.
func Lookup(c Category) (Intent, bool) {
	in, ok := Catalog[c]
	if !ok {
		return Intent{}, false
	}
	return in.Normalize(), true
}

// Categories returns every catalog category in name order.
func Categories() []Category {
	out := make([]Category, 0, len(Catalog))
	for c := range Catalog {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}
