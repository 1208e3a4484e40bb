// Package query executes structured intents against a cleaned dataset.
// All numbers are computed here; nothing upstream is trusted to do arithmetic.
package query

import "strings"

// Metric is a derivable quantity.
type Metric string

const (
	MetricSales           Metric = "sales"
	MetricProfit          Metric = "profit"
	MetricMarginPct       Metric = "margin_pct"
	MetricUnits           Metric = "units"
	MetricDistinctClients Metric = "distinct_clients"
)

// Metrics lists every valid metric in display order.
var Metrics = []Metric{MetricSales, MetricProfit, MetricMarginPct, MetricUnits, MetricDistinctClients}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	for _, known := range Metrics {
		if m == known {
			return true
		}
	}
	return false
}

// Value reads the metric from an aggregated row.
func (m Metric) Value(r Row) float64 {
	switch m {
	case MetricProfit:
		return r.Profit
	case MetricMarginPct:
		return r.MarginPct
	case MetricUnits:
		return r.Units
	case MetricDistinctClients:
		return float64(r.DistinctClients)
	default:
		return r.Sales
	}
}

// Dimension is a grouping axis.
type Dimension string

const (
	GroupNone     Dimension = "none"
	GroupSeller   Dimension = "seller"
	GroupBrand    Dimension = "brand"
	GroupCategory Dimension = "category"
	GroupClient   Dimension = "client"
)

// Dimensions lists every valid grouping.
var Dimensions = []Dimension{GroupNone, GroupSeller, GroupBrand, GroupCategory, GroupClient}

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	for _, known := range Dimensions {
		if d == known {
			return true
		}
	}
	return false
}

// Order is a sort direction.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

const (
	DefaultLimit = 10
	MaxLimit     = 1000
)

// Filters narrows the dataset. Nil pointers and empty strings are no-ops.
type Filters struct {
	Month    *int   `json:"month,omitempty"`
	Year     *int   `json:"year,omitempty"`
	Seller   string `json:"seller,omitempty"`
	Brand    string `json:"brand,omitempty"`
	Category string `json:"category,omitempty"`
	Client   string `json:"client,omitempty"`
}

// IsEmpty returns true if no filter is set.
func (f Filters) IsEmpty() bool {
	return f.Month == nil && f.Year == nil &&
		f.Seller == "" && f.Brand == "" && f.Category == "" && f.Client == ""
}

// Sort selects the ordering of grouped rows.
type Sort struct {
	By    Metric `json:"by"`
	Order Order  `json:"order"`
}

// Intent is the validated, structured form of a question.
type Intent struct {
	Metric  Metric    `json:"metric"`
	GroupBy Dimension `json:"group_by"`
	Filters Filters   `json:"filters"`
	Sort    Sort      `json:"sort"`
	Limit   int       `json:"limit"`
}

// Normalize replaces unknown or missing fields with their documented defaults.
// It never fails: a partially specified intent still runs.
func (in Intent) Normalize() Intent {
	out := in

	out.Metric = Metric(strings.ToLower(strings.TrimSpace(string(in.Metric))))
	if !out.Metric.Valid() {
		out.Metric = MetricSales
	}

	out.GroupBy = Dimension(strings.ToLower(strings.TrimSpace(string(in.GroupBy))))
	if out.GroupBy == "" || !out.GroupBy.Valid() {
		out.GroupBy = GroupNone
	}

	by := Metric(strings.ToLower(strings.TrimSpace(string(in.Sort.By))))
	order := Order(strings.ToLower(strings.TrimSpace(string(in.Sort.Order))))
	switch {
	case by == "":
		out.Sort.By = out.Metric
	case by.Valid():
		out.Sort.By = by
	default:
		out.Sort.By = MetricSales
		order = OrderDesc
	}
	if order != OrderAsc {
		order = OrderDesc
	}
	out.Sort.Order = order

	switch {
	case in.Limit <= 0:
		out.Limit = DefaultLimit
	case in.Limit > MaxLimit:
		out.Limit = MaxLimit
	}

	out.Filters = in.Filters.normalize()
	return out
}

func (f Filters) normalize() Filters {
	out := Filters{
		Seller:   strings.TrimSpace(f.Seller),
		Brand:    strings.TrimSpace(f.Brand),
		Category: strings.TrimSpace(f.Category),
		Client:   strings.TrimSpace(f.Client),
	}
	// an out-of-range month is kept so it matches nothing instead of widening the query
	if f.Month != nil {
		m := *f.Month
		out.Month = &m
	}
	if f.Year != nil && *f.Year > 0 {
		y := *f.Year
		out.Year = &y
	}
	return out
}

// Row is one aggregated group (or the whole subset when ungrouped).
type Row struct {
	Group           string  `json:"group"`
	Sales           float64 `json:"sales"`
	Cost            float64 `json:"cost"`
	Profit          float64 `json:"profit"`
	MarginPct       float64 `json:"margin_pct"`
	Units           float64 `json:"units"`
	DistinctClients int     `json:"distinct_clients"`
	Records         int     `json:"records"`
}

// Result is the outcome of executing an intent. No rows means no matching data.
type Result struct {
	GroupBy Dimension `json:"group_by"`
	Rows    []Row     `json:"rows"`
}

// IsEmpty reports whether no records matched.
func (r Result) IsEmpty() bool {
	return len(r.Rows) == 0
}

// Grouped reports whether rows are per-group rather than a single summary.
func (r Result) Grouped() bool {
	return r.GroupBy != GroupNone && r.GroupBy != ""
}

// IntPtr is a helper for building filters.
func IntPtr(v int) *int {
	return &v
}
