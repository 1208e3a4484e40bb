package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/query"
)

type queryFlags struct {
	category string
	metric   string
	groupBy  string
	sortBy   string
	order    string
	limit    int
	month    int
	year     int
	seller   string
	brand    string
	catName  string
	client   string
}

func (f *queryFlags) intent() (query.Intent, error) {
	in := query.Intent{
		Metric:  query.Metric(f.metric),
		GroupBy: query.Dimension(f.groupBy),
		Sort:    query.Sort{By: query.Metric(f.sortBy), Order: query.Order(f.order)},
		Limit:   f.limit,
	}
	if f.category != "" {
		tmpl, ok := query.Lookup(query.Category(f.category))
		if !ok {
			return query.Intent{}, fmt.Errorf("unknown category %q (see `salesq categories`)", f.category)
		}
		if f.limit > 0 {
			tmpl.Limit = f.limit
		}
		in = tmpl
	}

	in.Filters = query.Filters{
		Seller:   f.seller,
		Brand:    f.brand,
		Category: f.catName,
		Client:   f.client,
	}
	if f.month != 0 {
		in.Filters.Month = query.IntPtr(f.month)
	}
	if f.year != 0 {
		in.Filters.Year = query.IntPtr(f.year)
	}
	return in, nil
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a structured aggregation",
		Example: `  salesq query -f ventas.csv --group-by seller --month 3 --year 2024
  salesq query -f ventas.csv --category worst_margin_brand`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := f.intent()
			if err != nil {
				return err
			}
			s, err := root.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			answer, err := s.svc.Query(cmd.Context(), s.datasetID, in)
			if err != nil {
				return err
			}
			return root.print(cmd.OutOrStdout(), answer)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.category, "category", "", "catalog category to run instead of --metric/--group-by")
	flags.StringVar(&f.metric, "metric", "sales", "sales, profit, margin_pct, units or distinct_clients")
	flags.StringVar(&f.groupBy, "group-by", "none", "none, seller, brand, category or client")
	flags.StringVar(&f.sortBy, "sort-by", "", "metric to sort groups by (default: --metric)")
	flags.StringVar(&f.order, "order", "desc", "asc or desc")
	flags.IntVar(&f.limit, "limit", 0, "maximum number of groups (default 10)")
	flags.IntVar(&f.month, "month", 0, "month filter, 1-12")
	flags.IntVar(&f.year, "year", 0, "year filter")
	flags.StringVar(&f.seller, "seller", "", "seller contains filter")
	flags.StringVar(&f.brand, "brand", "", "brand contains filter")
	flags.StringVar(&f.catName, "product-category", "", "product category contains filter")
	flags.StringVar(&f.client, "client", "", "client contains filter")
	return cmd
}

func newAskCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "ask QUESTION",
		Short:   "Answer a free-text question",
		Example: `  salesq ask -f ventas.csv "top 3 marcas con mejor margen en marzo 2024"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			answer, err := s.svc.Ask(cmd.Context(), s.datasetID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return root.print(cmd.OutOrStdout(), answer)
		},
	}
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the questions answered without the assistant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tMETRIC\tGROUP BY\tORDER\tLIMIT")
			for _, c := range query.Categories() {
				in, _ := query.Lookup(c)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", c, in.Metric, in.GroupBy, in.Sort.Order, in.Limit)
			}
			return tw.Flush()
		},
	}
}
