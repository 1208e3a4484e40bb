package query

import (
	"sort"
	"strings"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/dataset"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/normalizer"
)

// Execute runs an intent against a dataset. It never fails; when no record
// matches the filters the result simply has no rows.
func Execute(ds *dataset.Dataset, in Intent) Result {
	in = in.Normalize()
	result := Result{GroupBy: in.GroupBy}
	if ds == nil {
		return result
	}

	subset := Filter(ds.Records, in.Filters)
	if len(subset) == 0 {
		return result
	}

	rows := Aggregate(subset, in.GroupBy)
	if result.Grouped() {
		rows = SortAndLimit(rows, in.Sort, in.Limit)
	}
	result.Rows = rows
	return result
}

type filterStep func(dataset.Record) bool

// Filter applies month, year, then the contains filters, each narrowing the
// previous subset. Records without a parsed date never match a date filter.
func Filter(records []dataset.Record, f Filters) []dataset.Record {
	var steps []filterStep
	if f.Month != nil {
		month := *f.Month
		steps = append(steps, func(r dataset.Record) bool { return r.HasDate && r.Month == month })
	}
	if f.Year != nil {
		year := *f.Year
		steps = append(steps, func(r dataset.Record) bool { return r.HasDate && r.Year == year })
	}
	steps = appendContains(steps, f.Seller, func(r dataset.Record) string { return r.Seller })
	steps = appendContains(steps, f.Brand, func(r dataset.Record) string { return r.Brand })
	steps = appendContains(steps, f.Category, func(r dataset.Record) string { return r.Category })
	steps = appendContains(steps, f.Client, func(r dataset.Record) string { return r.Client })

	subset := records
	for _, keep := range steps {
		next := make([]dataset.Record, 0, len(subset))
		for _, r := range subset {
			if keep(r) {
				next = append(next, r)
			}
		}
		subset = next
		if len(subset) == 0 {
			return nil
		}
	}
	return subset
}

func appendContains(steps []filterStep, value string, field func(dataset.Record) string) []filterStep {
	want := normalizer.Label(value)
	if want == "" {
		return steps
	}
	return append(steps, func(r dataset.Record) bool {
		return strings.Contains(strings.ToUpper(field(r)), want)
	})
}

// GroupKey returns the label a record contributes to under dimension d.
func GroupKey(r dataset.Record, d Dimension) string {
	switch d {
	case GroupSeller:
		return r.Seller
	case GroupBrand:
		return r.Brand
	case GroupCategory:
		return r.Category
	case GroupClient:
		return r.Client
	default:
		return ""
	}
}

type accumulator struct {
	row     Row
	clients map[string]struct{}
}

func newAccumulator(group string) *accumulator {
	return &accumulator{row: Row{Group: group}, clients: make(map[string]struct{})}
}

func (a *accumulator) add(r dataset.Record) {
	a.row.Sales += r.Sale
	a.row.Cost += r.Cost
	a.row.Units += r.Units
	a.row.Records++
	if r.Client != "" {
		a.clients[r.Client] = struct{}{}
	}
}

func (a *accumulator) finish() Row {
	row := a.row
	row.Profit = row.Sales - row.Cost
	row.MarginPct = Margin(row.Sales, row.Profit)
	row.DistinctClients = len(a.clients)
	return row
}

// Margin returns profit/sales*100, or 0 when sales is zero.
func Margin(sales, profit float64) float64 {
	if sales == 0 {
		return 0
	}
	return profit / sales * 100
}

// Aggregate produces one summary row for GroupNone (even over no records) or
// one row per distinct label in first-appearance order.
func Aggregate(records []dataset.Record, groupBy Dimension) []Row {
	if groupBy == GroupNone || groupBy == "" || !groupBy.Valid() {
		acc := newAccumulator("")
		for _, r := range records {
			acc.add(r)
		}
		return []Row{acc.finish()}
	}

	var order []string
	groups := make(map[string]*accumulator)
	for _, r := range records {
		key := GroupKey(r, groupBy)
		acc, ok := groups[key]
		if !ok {
			acc = newAccumulator(key)
			groups[key] = acc
			order = append(order, key)
		}
		acc.add(r)
	}

	rows := make([]Row, 0, len(order))
	for _, key := range order {
		rows = append(rows, groups[key].finish())
	}
	return rows
}

// SortAndLimit stable-sorts a copy of rows and truncates it to limit (when positive).
// An unknown sort field falls back to sales descending.
func SortAndLimit(rows []Row, s Sort, limit int) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)

	by, order := s.By, s.Order
	if !by.Valid() {
		by, order = MetricSales, OrderDesc
	}

	if order == OrderAsc {
		sort.SliceStable(out, func(i, j int) bool { return by.Value(out[i]) < by.Value(out[j]) })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return by.Value(out[i]) > by.Value(out[j]) })
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
