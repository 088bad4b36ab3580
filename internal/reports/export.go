package reports

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sas-finance/service_layer/internal/domain"
)

// LedgerSheet is the worksheet ExportXLSX writes.
const LedgerSheet = "Grand livre"

var ledgerHeader = []string{"Date", "Libellé", "Catégorie", "Montant", "Statut"}

// ExportXLSX writes txs as a spreadsheet ledger followed by approved totals.
// Amounts are signed: outflows are negative.
func ExportXLSX(w io.Writer, appName string, txs []domain.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", LedgerSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   appName + " - Grand livre",
		Creator: appName,
	}); err != nil {
		return fmt.Errorf("set properties: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	for i, h := range ledgerHeader {
		if err := setCell(f, i+1, 1, h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(LedgerSheet, "A1", "E1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	row := 2
	for _, tx := range txs {
		values := []any{
			displayDate(tx.Date),
			tx.Label,
			tx.Category,
			tx.SignedAmount().InexactFloat64(),
			string(tx.Status),
		}
		for col, v := range values {
			if err := setCell(f, col+1, row, v); err != nil {
				return err
			}
		}
		row++
	}

	summary := Summarize(txs, nil)
	totalsStart := row + 1
	totals := []struct {
		label string
		value float64
	}{
		{"Total Entrées", summary.Income.InexactFloat64()},
		{"Total Sorties", summary.Expense.InexactFloat64()},
		{"Balance", summary.Balance.InexactFloat64()},
	}
	for i, t := range totals {
		if err := setCell(f, 1, totalsStart+i, t.label); err != nil {
			return err
		}
		if err := setCell(f, 4, totalsStart+i, t.value); err != nil {
			return err
		}
	}
	last := totalsStart + len(totals) - 1
	if err := f.SetCellStyle(LedgerSheet, "D2", fmt.Sprintf("D%d", last), money); err != nil {
		return fmt.Errorf("style amounts: %w", err)
	}
	if err := f.SetCellStyle(LedgerSheet, fmt.Sprintf("A%d", totalsStart), fmt.Sprintf("A%d", last), bold); err != nil {
		return fmt.Errorf("style totals: %w", err)
	}
	if err := f.SetColWidth(LedgerSheet, "B", "C", 28); err != nil {
		return fmt.Errorf("set width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellValue(LedgerSheet, cell, value); err != nil {
		return fmt.Errorf("set %s: %w", cell, err)
	}
	return nil
}

// displayDate renders an ISO date as dd/mm/yyyy, leaving anything else as is.
func displayDate(date string) string {
	if len(date) >= 10 {
		if t, err := time.Parse(time.DateOnly, date[:10]); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return date
}
