// Package loader turns an uploaded accounting export into a cleaned dataset.
// It decodes the file, locates the configured columns, and normalizes every row once.
package loader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/dataset"
	"github.com/FACorreiaa/sales-insight/internal/domain/sales/normalizer"
)

var (
	ErrEmptyFile           = errors.New("file is empty")
	ErrNoHeader            = errors.New("could not find a header row")
	ErrMissingColumn       = errors.New("required column not found")
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
)

const (
	EncodingLatin1      = "latin1"
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
)

// Options controls how a file is read.
type Options struct {
	Delimiter rune
	Encoding  string
	Columns   ColumnMapping
	Policy    normalizer.ThousandsPolicy
	Workers   int
}

// DefaultOptions matches the semicolon, Latin-1 accounting export.
func DefaultOptions() Options {
	return Options{
		Delimiter: ';',
		Encoding:  EncodingLatin1,
		Columns:   DefaultColumns(),
		Policy:    normalizer.PolicyThreeDigitGroup,
	}
}

type rawRow struct {
	line  int
	cells []string
	// numeric marks workbook cells stored as numbers; nil for delimited files
	numeric []bool
}

var (
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
)

// IsSpreadsheet reports whether data looks like an XLSX workbook.
func IsSpreadsheet(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

// Headers returns the trimmed header row without parsing the body.
func Headers(data []byte, opts Options) ([]string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	rows, _, err := readRows(data, opts)
	if err != nil {
		return nil, err
	}
	headers, _, err := splitHeader(rows)
	return headers, err
}

// Load reads, decodes and normalizes an export into an immutable dataset.
func Load(ctx context.Context, name string, data []byte, opts Options) (*dataset.Dataset, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	opts = withDefaults(opts)

	rows, spreadsheet, err := readRows(data, opts)
	if err != nil {
		return nil, err
	}

	headers, body, err := splitHeader(rows)
	if err != nil {
		return nil, err
	}

	idx := resolveColumns(headers, opts.Columns)
	if !idx.has(roleSale) {
		return nil, fmt.Errorf("%w: sale amount (looked for %q)", ErrMissingColumn, opts.Columns.Sale)
	}

	var warnings []string
	for r := roleCost; r < roleCount; r++ {
		if !idx.has(r) {
			warnings = append(warnings, fmt.Sprintf("no %s column found; values default to empty", roleNames[r]))
		}
	}

	p := &rowParser{
		idx:         idx,
		norm:        normalizer.New(opts.Policy),
		raw:         normalizer.New(normalizer.PolicyDotIsDecimal),
		spreadsheet: spreadsheet,
	}

	records, err := normalizeRows(ctx, body, p, opts.Workers)
	if err != nil {
		return nil, err
	}

	hasDates := false
	for _, r := range records {
		if r.HasDate {
			hasDates = true
			break
		}
	}
	if idx.has(roleDate) && !hasDates && len(records) > 0 {
		warnings = append(warnings, "date column present but no value could be parsed")
	}

	return &dataset.Dataset{
		ID:          ContentHash(data, opts),
		Fingerprint: Fingerprint(headers),
		Name:        name,
		Headers:     headers,
		Records:     records,
		HasDates:    hasDates,
		LoadedAt:    time.Now().UTC(),
		Warnings:    warnings,
	}, nil
}

// ContentHash identifies a file together with the options used to read it.
func ContentHash(data []byte, opts Options) string {
	opts = withDefaults(opts)
	h := sha256.New()
	h.Write(data)
	fmt.Fprintf(h, "|%q|%s|%s|%+v", opts.Delimiter, normalizeEncoding(opts.Encoding), opts.Policy, opts.Columns)
	return hex.EncodeToString(h.Sum(nil))
}

func withDefaults(opts Options) Options {
	if opts.Delimiter == 0 {
		opts.Delimiter = ';'
	}
	if opts.Encoding == "" {
		opts.Encoding = EncodingLatin1
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return opts
}

func normalizeEncoding(enc string) string {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return EncodingLatin1
	case "utf-8", "utf8":
		return EncodingUTF8
	case "windows-1252", "cp1252":
		return EncodingWindows1252
	default:
		return enc
	}
}

// decode converts the file to UTF-8. Files that are already valid UTF-8 with
// multi-byte sequences are kept as they are, whatever the configured encoding.
func decode(data []byte, encoding string) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	enc := normalizeEncoding(encoding)
	if enc != EncodingUTF8 && isMultiByteUTF8(data) {
		return data, nil
	}

	switch enc {
	case EncodingUTF8:
		return data, nil
	case EncodingLatin1:
		return charmap.ISO8859_1.NewDecoder().Bytes(data)
	case EncodingWindows1252:
		return charmap.Windows1252.NewDecoder().Bytes(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, encoding)
	}
}

func isMultiByteUTF8(data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return true
		}
	}
	return false
}

func readRows(data []byte, opts Options) ([]rawRow, bool, error) {
	if IsSpreadsheet(data) {
		rows, err := readSpreadsheet(data)
		return rows, true, err
	}
	rows, err := readDelimited(data, opts)
	return rows, false, err
}

func readDelimited(data []byte, opts Options) ([]rawRow, error) {
	opts = withDefaults(opts)
	decoded, err := decode(data, opts.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = opts.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows []rawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read delimited file: %w", err)
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, rawRow{line: line, cells: record})
	}
	return rows, nil
}

func readSpreadsheet(data []byte) ([]rawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	cells, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	rows := make([]rawRow, 0, len(cells))
	for i, c := range cells {
		numeric, err := numericCells(f, sheets[0], i+1, c)
		if err != nil {
			return nil, err
		}
		rows = append(rows, rawRow{line: i + 1, cells: c, numeric: numeric})
	}
	return rows, nil
}

// numericCells reports which cells of a sheet row hold stored numbers. Text
// cells keep the locale formatting of whoever typed them.
func numericCells(f *excelize.File, sheet string, row int, cells []string) ([]bool, error) {
	numeric := make([]bool, len(cells))
	for col, v := range cells {
		if strings.TrimSpace(v) == "" {
			continue
		}
		axis, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return nil, fmt.Errorf("failed to address cell: %w", err)
		}
		typ, err := f.GetCellType(sheet, axis)
		if err != nil {
			return nil, fmt.Errorf("failed to read type of cell %s: %w", axis, err)
		}
		numeric[col] = typ == excelize.CellTypeUnset || typ == excelize.CellTypeNumber
	}
	return numeric, nil
}

// splitHeader returns the first non-blank row as trimmed headers and the
// remaining non-blank rows as the body.
func splitHeader(rows []rawRow) ([]string, []rawRow, error) {
	start := -1
	for i, r := range rows {
		if !isBlank(r.cells) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, nil, ErrNoHeader
	}

	headers := make([]string, len(rows[start].cells))
	for i, h := range rows[start].cells {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	body := make([]rawRow, 0, len(rows)-start-1)
	for _, r := range rows[start+1:] {
		if !isBlank(r.cells) {
			body = append(body, r)
		}
	}
	return headers, body, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// normalizeRows parses rows on a bounded worker pool, keeping source order.
func normalizeRows(ctx context.Context, rows []rawRow, p *rowParser, workers int) ([]dataset.Record, error) {
	records := make([]dataset.Record, len(rows))
	if len(rows) == 0 {
		return records, nil
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int, workers*4)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range jobs {
				records[pos] = p.parse(rows[pos])
			}
		}()
	}

feed:
	for pos := range rows {
		select {
		case jobs <- pos:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

type rowParser struct {
	idx columnIndex
	// norm reads text; raw reads workbook numbers, which always use a dot decimal point
	norm        *normalizer.Normalizer
	raw         *normalizer.Normalizer
	spreadsheet bool
}

func (p *rowParser) cell(cells []string, r role) string {
	i := p.idx[r]
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

func (p *rowParser) amount(row rawRow, r role) float64 {
	i := p.idx[r]
	if i < 0 || i >= len(row.cells) {
		return 0
	}
	if i < len(row.numeric) && row.numeric[i] {
		return p.raw.Amount(row.cells[i])
	}
	return p.norm.Amount(row.cells[i])
}

// parse converts a row into a Record. Sale, cost and quantity are normalized
// independently; unparseable cells become 0.
func (p *rowParser) parse(row rawRow) dataset.Record {
	rec := dataset.Record{
		Line:     row.line,
		Seller:   normalizer.Label(p.cell(row.cells, roleSeller)),
		Brand:    normalizer.Label(p.cell(row.cells, roleBrand)),
		Category: normalizer.Label(p.cell(row.cells, roleCategory)),
		Client:   normalizer.Label(p.cell(row.cells, roleClient)),
		Sale:     p.amount(row, roleSale),
		Cost:     p.amount(row, roleCost),
		Units:    p.amount(row, roleQuantity),
	}

	if date, ok := p.date(p.cell(row.cells, roleDate)); ok {
		rec.Date = date
		rec.HasDate = true
		rec.Year = date.Year()
		rec.Month = int(date.Month())
	}
	return rec
}

func (p *rowParser) date(raw string) (time.Time, bool) {
	if t, ok := normalizer.ParseDayFirstDate(raw); ok {
		return t, true
	}
	if !p.spreadsheet {
		return time.Time{}, false
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
