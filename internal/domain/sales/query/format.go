package query

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// NoDataMessage is returned for results without rows.
const NoDataMessage = "No data for this query."

var metricLabels = map[Metric]string{
	MetricSales:           "sales",
	MetricProfit:          "profit",
	MetricMarginPct:       "margin",
	MetricUnits:           "units",
	MetricDistinctClients: "distinct clients",
}

// Label is the human name of a metric.
func (m Metric) Label() string {
	if l, ok := metricLabels[m]; ok {
		return l
	}
	return string(m)
}

// FormatAnswer renders a result as a one-line answer.
func FormatAnswer(in Intent, res Result) string {
	if res.IsEmpty() {
		return NoDataMessage
	}
	in = in.Normalize()

	if !res.Grouped() {
		r := res.Rows[0]
		return strings.Join([]string{
			"Sales: " + FormatMetric(MetricSales, r.Sales),
			"Profit: " + FormatMetric(MetricProfit, r.Profit),
			"Margin: " + FormatMetric(MetricMarginPct, r.MarginPct),
			"Units: " + FormatMetric(MetricUnits, r.Units),
			"Clients: " + FormatMetric(MetricDistinctClients, float64(r.DistinctClients)),
		}, " | ")
	}

	top := res.Rows[0]
	group := top.Group
	if group == "" {
		group = "(blank)"
	}
	return fmt.Sprintf("Top %s: %s with %s of %s (%s shown)",
		res.GroupBy, group, in.Metric.Label(), FormatMetric(in.Metric, in.Metric.Value(top)),
		humanize.Comma(int64(len(res.Rows))))
}

// FormatMetric formats a value the way its metric is displayed: currency for
// money, two-decimal percentage for margin, grouped integers for counts.
func FormatMetric(m Metric, v float64) string {
	switch m {
	case MetricSales, MetricProfit:
		return FormatCurrency(v)
	case MetricMarginPct:
		return decimal.NewFromFloat(v).StringFixed(2) + "%"
	default:
		return humanize.Comma(int64(math.Round(v)))
	}
}

// FormatCurrency renders v as "$ 1,234.56".
func FormatCurrency(v float64) string {
	if v < 0 {
		return "-$ " + humanize.FormatFloat("#,###.##", -v)
	}
	return "$ " + humanize.FormatFloat("#,###.##", v)
}
