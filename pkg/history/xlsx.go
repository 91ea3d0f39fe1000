package history

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "History"

// WriteXLSX writes rows as a single-sheet workbook with Header in row 1.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}

	for i, r := range rows {
		cell := "A" + fmt.Sprint(i+2)
		values := []interface{}{r.Date, r.InvoiceNo, r.TruckNo, r.Qty, r.Amount, r.GrandTotal}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}
	}

	return f.Write(w)
}
