// pkg/report/pdf.go

package report

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/gst-invoice-generator/pkg/history"
)

// RowText is the block printed for one history row.
func RowText(r history.Row) string {
	return fmt.Sprintf("Date: %s\nInvoice No: %s\nTruck No: %s\nQty: %s\nAmount: %s\nTotal: %s\n\n",
		r.Date, r.InvoiceNo, r.TruckNo, r.Qty, r.Amount, r.GrandTotal)
}

// Batch renders history rows into a PDF summary.
type Batch struct {
	// Uncompressed leaves page streams readable; tests use it to inspect text.
	Uncompressed bool
}

// Render prints one text block per row on A4 pages using Arial 12.
// An empty rows slice still yields a valid single blank page.
func (b Batch) Render(rows []history.Row) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(!b.Uncompressed)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, r := range rows {
		pdf.MultiCell(0, 10, tr(RowText(r)), "", "", false)
	}

	var pdfBuffer bytes.Buffer
	if err := pdf.Output(&pdfBuffer); err != nil {
		return nil, fmt.Errorf("render batch pdf: %w", err)
	}
	return pdfBuffer.Bytes(), nil
}
