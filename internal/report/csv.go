package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"spendwise/internal/models"
)

var csvHeader = []string{"id", "date", "category", "description", "amount"}

// WriteCSV writes xs to w as CSV with a header row. Amounts carry two decimals.
func WriteCSV(w io.Writer, xs []models.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range xs {
		row := []string{e.ID, e.Date, e.Category, e.Description, e.Amount.StringFixed(2)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
