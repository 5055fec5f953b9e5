// Package export renders reports as spreadsheet downloads.
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"coldledger/internal/domain/registers/account"
)

// ContentTypeXLSX is the MIME type of the workbooks produced here.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var bucketHeadings = map[string]string{
	account.BucketCurrent: "Current",
	account.Bucket1To30:   "1-30 days",
	account.Bucket31To60:  "31-60 days",
	account.Bucket61To90:  "61-90 days",
	account.BucketOver90:  "Over 90 days",
}

// SheetName returns the worksheet title for an aging report of type t.
func SheetName(t account.EntryType) string {
	if t == account.Payable {
		return "Payable aging"
	}
	return "Receivable aging"
}

// AgingFilename is the download name for r.
func AgingFilename(r account.AgingReport) string {
	return fmt.Sprintf("aging-%s-%s.xlsx", r.Type, r.AsOf.Format("20060102"))
}

// AgingWorkbook lays out r as one sheet: a header row, one row per party, a
// totals row, and the overdue summary below it.
func AgingWorkbook(r account.AgingReport) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := SheetName(r.Type)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		f.Close()
		return nil, err
	}

	headings := []any{"Code", "Party"}
	for _, b := range account.Buckets {
		headings = append(headings, bucketHeadings[b])
	}
	headings = append(headings, "Total")
	lastCol := len(headings)

	w := &sheetWriter{f: f, sheet: sheet}
	w.row(1, headings...)

	rowNo := 2
	for _, row := range r.Rows {
		vals := []any{row.PartyCode, row.PartyName}
		for _, b := range account.Buckets {
			vals = append(vals, money(row.Buckets[b]))
		}
		vals = append(vals, money(row.Total))
		w.row(rowNo, vals...)
		rowNo++
	}

	totals := []any{"", "Total"}
	for _, b := range account.Buckets {
		totals = append(totals, money(r.Totals[b]))
	}
	totals = append(totals, money(r.Total))
	totalRow := rowNo
	w.row(totalRow, totals...)

	w.row(totalRow+2, "", "As of", r.AsOf.Format("2006-01-02"))
	w.row(totalRow+3, "", "Overdue", money(r.Overdue))
	w.row(totalRow+4, "", "Overdue rate %", money(r.OverdueRate))
	if w.err != nil {
		f.Close()
		return nil, w.err
	}

	lastCell, err := excelize.CoordinatesToCellName(lastCol, 1)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCell, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	totalFirst, _ := excelize.CoordinatesToCellName(1, totalRow)
	totalLast, _ := excelize.CoordinatesToCellName(lastCol, totalRow)
	if err := f.SetCellStyle(sheet, totalFirst, totalLast, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	if len(r.Rows) > 0 {
		moneyFirst, _ := excelize.CoordinatesToCellName(3, 2)
		moneyLast, _ := excelize.CoordinatesToCellName(lastCol, totalRow-1)
		if err := f.SetCellStyle(sheet, moneyFirst, moneyLast, moneyStyle); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := f.SetColWidth(sheet, "B", "B", 32); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// WriteAging streams the aging workbook for r to out.
func WriteAging(out io.Writer, r account.AgingReport) error {
	f, err := AgingWorkbook(r)
	if err != nil {
		return fmt.Errorf("build aging workbook: %w", err)
	}
	defer f.Close()
	if err := f.Write(out); err != nil {
		return fmt.Errorf("write aging workbook: %w", err)
	}
	return nil
}

// money converts to float64 for the cell; the workbook is a presentation copy.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// sheetWriter keeps the first error of a sequence of cell writes.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) row(rowNo int, vals ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(w.sheet, cell, &vals)
}
