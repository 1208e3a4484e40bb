package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/assistant"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/cache"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/query"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/repository"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/report"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/service"
	"github.com/FACorreiaa/sales-insight/pkg/config"
)

type rootOptions struct {
	file      string
	delimiter string
	encoding  string
	policy    string
	jsonOut   bool
	xlsxOut   string
	verbose   bool
}

// session is one loaded file ready to be queried.
type session struct {
	svc       *service.SalesService
	datasetID string
	close     func()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "salesq",
		Short:         "Query sales exports from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.file, "file", "f", "", "CSV or XLSX export to read (required)")
	flags.StringVar(&opts.delimiter, "delimiter", "", "field delimiter (default from config, ';')")
	flags.StringVar(&opts.encoding, "encoding", "", "file encoding: latin1, utf-8 or windows-1252")
	flags.StringVar(&opts.policy, "thousands", "", "thousands policy: three_digit_group, dot_decimal or dot_thousands")
	flags.BoolVar(&opts.jsonOut, "json", false, "print the full answer as JSON")
	flags.StringVar(&opts.xlsxOut, "xlsx", "", "also write the result rows to this XLSX file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")

	cmd.AddCommand(newQueryCmd(opts), newAskCmd(opts), newCategoriesCmd())
	return cmd
}

func (o *rootOptions) logger(stderr io.Writer) *slog.Logger {
	if !o.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// open loads configuration, builds the service with in-memory profiles and
// reads the export.
func (o *rootOptions) open(ctx context.Context, stderr io.Writer) (*session, error) {
	if o.file == "" {
		return nil, errors.New("--file is required")
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.delimiter != "" {
		cfg.Import.Delimiter = o.delimiter
	}
	if o.encoding != "" {
		cfg.Import.Encoding = o.encoding
	}
	if o.policy != "" {
		cfg.Import.ThousandsPolicy = o.policy
	}

	data, err := os.ReadFile(o.file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", o.file, err)
	}
	logger := o.logger(stderr)

	svcOpts, err := service.NewOptions(cfg.Import, cfg.Assistant.Narrate)
	if err != nil {
		return nil, err
	}
	datasets, err := cache.NewDatasetCache(1)
	if err != nil {
		return nil, err
	}

	closeFn := func() {}
	var asst service.IntentAssistant
	if cfg.Assistant.APIKey != "" {
		completer, err := assistant.NewGeminiCompleter(ctx, cfg.Assistant.APIKey, cfg.Assistant.Model)
		if err != nil {
			return nil, err
		}
		closeFn = func() { _ = completer.Close() }
		asst = assistant.New(completer, assistant.Config{
			Timeout:    cfg.Assistant.Timeout,
			MaxRetries: cfg.Assistant.MaxRetries,
			RetryDelay: cfg.Assistant.RetryDelay,
			Rate:       cfg.Assistant.Rate,
			Burst:      cfg.Assistant.Burst,
		}, logger)
	}

	svc := service.NewSalesService(repository.NewMemoryProfileRepository(), datasets, asst, nil, svcOpts, logger)
	loaded, err := svc.LoadDataset(ctx, filepath.Base(o.file), data, nil)
	if err != nil {
		closeFn()
		return nil, err
	}
	for _, w := range loaded.Warnings {
		fmt.Fprintln(stderr, "warning:", w)
	}
	return &session{svc: svc, datasetID: loaded.DatasetID, close: closeFn}, nil
}

func (o *rootOptions) print(out io.Writer, answer *service.Answer) error {
	if o.xlsxOut != "" {
		if err := writeWorkbook(o.xlsxOut, answer); err != nil {
			return err
		}
	}

	if o.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	fmt.Fprintln(out, answer.Text)
	if answer.Narrative != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, answer.Narrative)
	}
	if !answer.Result.Grouped() || answer.Result.IsEmpty() {
		return nil
	}

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\tsales\tprofit\tmargin\tunits\tclients\t\n", strings.ToUpper(string(answer.Result.GroupBy)))
	for _, r := range answer.Result.Rows {
		group := r.Group
		if group == "" {
			group = "(blank)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			group,
			query.FormatMetric(query.MetricSales, r.Sales),
			query.FormatMetric(query.MetricProfit, r.Profit),
			query.FormatMetric(query.MetricMarginPct, r.MarginPct),
			query.FormatMetric(query.MetricUnits, r.Units),
			query.FormatMetric(query.MetricDistinctClients, float64(r.DistinctClients)))
	}
	return tw.Flush()
}

func writeWorkbook(path string, answer *service.Answer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := report.WriteXLSX(f, answer.Intent, answer.Result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
