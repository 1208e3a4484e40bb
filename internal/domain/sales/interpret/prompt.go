package interpret

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/query"
)

// BuildIntentPrompt asks the assistant to translate a question into the
// intent JSON. The assistant never computes numbers.
func BuildIntentPrompt(question string, summary Summary) string {
	var b strings.Builder

	b.WriteString(`You translate questions about a sales report into a JSON query.
Do NOT compute any values; a local engine runs the query.

Respond with exactly one JSON object and nothing else, with this shape:
{"metric": "...", "group_by": "...", "filters": {"month": null, "year": null, "seller": null, "brand": null, "category": null, "client": null}, "sort": {"by": "...", "order": "desc"}, "limit": 10}

`)
	fmt.Fprintf(&b, "metric and sort.by: one of %s\n", joinQuoted(lo.Map(query.Metrics, func(m query.Metric, _ int) string { return string(m) })))
	fmt.Fprintf(&b, "group_by: one of %s\n", joinQuoted(lo.Map(query.Dimensions, func(d query.Dimension, _ int) string { return string(d) })))
	b.WriteString(`sort.order: "asc" or "desc"
filters.month: 1-12 or null; filters.year: four digits or null
seller, brand, category, client: text contained in the label, or null

`)

	if summary.Records > 0 {
		data, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Fprintf(&b, "DATA SUMMARY (labels and totals, not rows):\n%s\n\n", data)
	}

	fmt.Fprintf(&b, "QUESTION: %s\n", strings.TrimSpace(question))
	return b.String()
}

// BuildNarrationPrompt asks the assistant to phrase an already computed answer.
func BuildNarrationPrompt(question, answer string, rows []query.Row) string {
	var b strings.Builder
	b.WriteString(`You are a sales analyst. Answer the question in two or three sentences using
ONLY the figures below. Do not invent or recompute numbers.

`)
	fmt.Fprintf(&b, "QUESTION: %s\nANSWER: %s\n", strings.TrimSpace(question), answer)
	if len(rows) > 0 {
		data, _ := json.Marshal(rows)
		fmt.Fprintf(&b, "ROWS: %s\n", data)
	}
	return b.String()
}

func joinQuoted(values []string) string {
	return strings.Join(lo.Map(values, func(v string, _ int) string { return `"` + v + `"` }), ", ")
}
