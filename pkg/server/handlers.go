package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/gst-invoice-generator/pkg/document"
	"github.com/gst-invoice-generator/pkg/history"
	"github.com/gst-invoice-generator/pkg/invoice"
	"github.com/gst-invoice-generator/pkg/logging"
)

const (
	msgFillAll         = "कृपया सभी फ़ील्ड भरें।"
	msgBadQuantity     = "Quantity सही नहीं है।"
	msgTemplateMissing = "Template फाइल '%s' नहीं मिली।"
	msgCreated         = "Invoice %s सफलतापूर्वक बन गई।"
	msgNoDocument      = "पहले कोई इनवॉइस जनरेट करें।"
	msgBadCount        = "Count सही नहीं है।"
)

const (
	docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// invoiceForm is the submitted form after trimming.
type invoiceForm struct {
	InvoiceNo string `validate:"required"`
	Date      string `validate:"required"`
	TruckNo   string `validate:"required"`
	Qty       string `validate:"required"`
}

type preview struct {
	Amount string
	Total  string
}

type indexPage struct {
	InvoiceNo string
	Today     string
	Date      string
	TruckNo   string
	Qty       string
	Error     string
	Success   string
	Preview   *preview
}

type makePDFPage struct {
	Total int
}

// lastInvoice never fails: an absent or corrupt state file means the
// configured default.
func (s *Server) lastInvoice() string {
	last, err := s.state.Load()
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"path":    s.state.Path,
			"absent":  errors.Is(err, invoice.ErrStateAbsent),
			"corrupt": errors.Is(err, invoice.ErrStateCorrupt),
		}).WithError(err).Debug("using default last invoice")
	}
	return last
}

// historyRows never fails: an unreadable log yields the rows read before
// the problem, or none.
func (s *Server) historyRows() []history.Row {
	rows, err := s.history.Rows()
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"path": s.history.Path,
			"rows": len(rows),
		}).WithError(err).Debug("history only partly readable")
	}
	return rows
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	page := indexPage{
		InvoiceNo: invoice.NextNumber(s.lastInvoice(), s.cfg.SeedInvoice()),
		Today:     s.now().Format(s.cfg.DateLayout),
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		form := invoiceForm{
			InvoiceNo: strings.TrimSpace(r.PostForm.Get("invoice_no")),
			Date:      strings.TrimSpace(r.PostForm.Get("date")),
			TruckNo:   strings.ToUpper(strings.TrimSpace(r.PostForm.Get("truck_no"))),
			Qty:       strings.TrimSpace(r.PostForm.Get("qty")),
		}
		page.InvoiceNo = form.InvoiceNo
		page.Date = form.Date
		page.TruckNo = form.TruckNo
		page.Qty = form.Qty

		if err := s.submit(r.Context(), form, &page); err != nil {
			s.serverError(w, "index", "submit", form.InvoiceNo, err)
			return
		}
	}

	s.render(w, "index.html", page)
}

// submit validates form and, when it is complete, generates the invoice.
// User-facing problems are reported through page; the returned error is
// reserved for failed writes.
func (s *Server) submit(ctx context.Context, form invoiceForm, page *indexPage) error {
	if err := s.validate.Struct(form); err != nil {
		page.Error = msgFillAll
		return nil
	}
	qty, err := decimal.NewFromString(form.Qty)
	if err != nil || qty.IsNegative() {
		page.Error = msgBadQuantity
		return nil
	}

	inv := invoice.New(form.InvoiceNo, form.Date, form.TruckNo, qty, invoice.Rates{
		Rate:     s.cfg.Rate,
		SGSTRate: s.cfg.SGSTRate,
		CGSTRate: s.cfg.CGSTRate,
	})
	values := inv.Context()

	s.mu.Lock()
	defer s.mu.Unlock()

	single, err := s.filler.Fill(s.cfg.TemplateFile, values)
	if errors.Is(err, document.ErrTemplateMissing) {
		page.Error = fmt.Sprintf(msgTemplateMissing, s.cfg.TemplateFile)
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.appendToMaster(single); err != nil {
		return err
	}

	row := history.RowFromInvoice(inv)
	if err := s.history.Append(row); err != nil {
		return err
	}
	if err := s.state.Save(inv.InvoiceNumber); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.Insert(ctx, row); err != nil {
			logging.LogError(s.logger, "server", "submit", "mirror insert", row, err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"invoice_no": inv.InvoiceNumber,
		"truck_no":   inv.TruckNumber,
		"total":      values["rounded"],
	}).Info("invoice generated")

	page.Success = fmt.Sprintf(msgCreated, inv.InvoiceNumber)
	page.Preview = &preview{Amount: values["amount"], Total: values["rounded"]}
	page.InvoiceNo = invoice.NextNumber(inv.InvoiceNumber, s.cfg.SeedInvoice())
	page.TruckNo = ""
	page.Qty = ""
	return nil
}

// appendToMaster adds single to the merged document, creating it on first use.
func (s *Server) appendToMaster(single []byte) error {
	master, err := os.ReadFile(s.cfg.OutputFile)
	if errors.Is(err, os.ErrNotExist) {
		return document.WriteFile(s.cfg.OutputFile, single)
	}
	if err != nil {
		return fmt.Errorf("read merged document: %w", err)
	}
	merged, err := s.merger.Append(master, single)
	if err != nil {
		return fmt.Errorf("merge invoice: %w", err)
	}
	return document.WriteFile(s.cfg.OutputFile, merged)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(s.cfg.OutputFile)
	if errors.Is(err, os.ErrNotExist) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(msgNoDocument))
		return
	}
	if err != nil {
		s.serverError(w, "download", "read merged document", s.cfg.OutputFile, err)
		return
	}
	attachment(w, filepath.Base(s.cfg.OutputFile), docxContentType, data)
}

func (s *Server) makePDF(w http.ResponseWriter, r *http.Request) {
	rows := s.historyRows()

	if r.Method != http.MethodPost {
		s.render(w, "make_pdf.html", makePDFPage{Total: len(rows)})
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	count, err := strconv.Atoi(strings.TrimSpace(r.PostForm.Get("count")))
	if err != nil {
		http.Error(w, msgBadCount, http.StatusBadRequest)
		return
	}

	pdf, err := s.batch.Render(history.Last(rows, count))
	if err != nil {
		s.serverError(w, "makePDF", "render", count, err)
		return
	}
	if err := os.WriteFile(s.cfg.BatchPDFFile, pdf, 0o644); err != nil {
		s.serverError(w, "makePDF", "write pdf", s.cfg.BatchPDFFile, err)
		return
	}
	attachment(w, filepath.Base(s.cfg.BatchPDFFile), "application/pdf", pdf)
}

func (s *Server) exportHistory(w http.ResponseWriter, r *http.Request) {
	rows := s.historyRows()
	var buf bytes.Buffer
	if err := history.WriteXLSX(&buf, rows); err != nil {
		s.serverError(w, "exportHistory", "write xlsx", nil, err)
		return
	}
	attachment(w, "invoice_history.xlsx", xlsxContentType, buf.Bytes())
}
