// pkg/history/history.go

package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gst-invoice-generator/pkg/invoice"
)

// Header is written once, when the log file is created.
var Header = []string{"Date", "Invoice No", "Truck No", "Qty", "Amount", "Grand Total"}

// Row is one logged invoice, stored exactly as it was displayed.
type Row struct {
	Date       string
	InvoiceNo  string
	TruckNo    string
	Qty        string
	Amount     string
	GrandTotal string
}

// RowFromInvoice takes the formatted values written on the invoice itself.
func RowFromInvoice(inv invoice.Invoice) Row {
	ctx := inv.Context()
	return Row{
		Date:       ctx["date"],
		InvoiceNo:  ctx["invoice_no"],
		TruckNo:    ctx["truck_no"],
		Qty:        ctx["qty"],
		Amount:     ctx["amount"],
		GrandTotal: ctx["rounded"],
	}
}

func (r Row) record() []string {
	return []string{r.Date, r.InvoiceNo, r.TruckNo, r.Qty, r.Amount, r.GrandTotal}
}

func rowFromRecord(rec []string) Row {
	field := func(i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}
	return Row{
		Date:       field(0),
		InvoiceNo:  field(1),
		TruckNo:    field(2),
		Qty:        field(3),
		Amount:     field(4),
		GrandTotal: field(5),
	}
}

// Log is an append-only CSV file. It assumes a single writer.
type Log struct {
	Path string
}

func NewLog(path string) *Log {
	return &Log{Path: path}
}

// Append writes row, preceded by Header when the file does not exist yet.
func (l *Log) Append(row Row) (err error) {
	_, statErr := os.Stat(l.Path)
	fresh := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close history: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	w.UseCRLF = true
	if fresh {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("write history header: %w", err)
		}
	}
	if err := w.Write(row.record()); err != nil {
		return fmt.Errorf("write history row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush history: %w", err)
	}
	return nil
}

// Rows returns every data row, oldest first, without the header.
// A missing file is an empty log. Stray quotes inside fields are accepted;
// on a read error the rows parsed before it are returned with the error.
func (l *Log) Rows() ([]Row, error) {
	f, err := os.Open(l.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows []Row
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("read history: %w", err)
		}
		if first {
			first = false
			continue
		}
		rows = append(rows, rowFromRecord(rec))
	}
	return rows, nil
}

// Last returns the trailing n rows. n is clamped to [0, len(rows)].
func Last(rows []Row, n int) []Row {
	if n <= 0 {
		return nil
	}
	if n > len(rows) {
		n = len(rows)
	}
	return rows[len(rows)-n:]
}
