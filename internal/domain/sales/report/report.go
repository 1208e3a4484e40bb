// Package report writes query results to spreadsheets.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/query"
)

const sheetName = "Result"

var headers = []string{"Group", "Sales", "Cost", "Profit", "Margin %", "Units", "Clients", "Records"}

// WriteXLSX writes the answer text and one row per result row as a workbook.
func WriteXLSX(w io.Writer, in query.Intent, res query.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#2D3436"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := f.SetCellValue(sheetName, "A1", query.FormatAnswer(in, res)); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", "A1", titleStyle); err != nil {
		return err
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A3", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 3)
	if err := f.SetCellStyle(sheetName, "A3", last, headerStyle); err != nil {
		return err
	}

	for i, r := range res.Rows {
		group := r.Group
		if group == "" {
			group = "(blank)"
		}
		if !res.Grouped() {
			group = "Total"
		}
		row := []any{group, r.Sales, r.Cost, r.Profit, r.MarginPct, r.Units, r.DistinctClients, r.Records}
		cell, _ := excelize.CoordinatesToCellName(1, i+4)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if n := len(res.Rows); n > 0 {
		end, _ := excelize.CoordinatesToCellName(5, n+3)
		if err := f.SetCellStyle(sheetName, "B4", end, moneyStyle); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheetName, "A", "A", 28); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
