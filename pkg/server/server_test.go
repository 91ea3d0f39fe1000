package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gst-invoice-generator/pkg/config"
	"github.com/gst-invoice-generator/pkg/document/documenttest"
	"github.com/gst-invoice-generator/pkg/history"
	"github.com/gst-invoice-generator/pkg/logging"
	"github.com/gst-invoice-generator/pkg/report"
)

var fixedNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

type fakeMirror struct {
	mu      sync.Mutex
	rows    []history.Row
	err     error
	pingErr error
}

func (m *fakeMirror) Ping(ctx context.Context) error { return m.pingErr }

func (m *fakeMirror) Insert(ctx context.Context, row history.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, row)
	return nil
}

type fixture struct {
	cfg    config.Config
	router http.Handler
}

func newFixture(t *testing.T, withTemplate bool, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.TemplateFile = filepath.Join(dir, "invoice.docx")
	cfg.OutputFile = filepath.Join(dir, "latest_invoice.docx")
	cfg.HistoryFile = filepath.Join(dir, "invoice_history.csv")
	cfg.StateFile = filepath.Join(dir, "app_state.json")
	cfg.BatchPDFFile = filepath.Join(dir, "selected_invoices.pdf")

	if withTemplate {
		tpl := documenttest.Build("Invoice {{ invoice_no }}", "Truck {{ truck_no }}", "Total {{ rounded }}", "{{ amount_words }}")
		require.NoError(t, os.WriteFile(cfg.TemplateFile, tpl, 0o644))
	}

	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithBatch(report.Batch{Uncompressed: true})}, opts...)
	s := New(cfg, logging.NewWithOutput("error", io.Discard), opts...)
	return &fixture{cfg: cfg, router: s.Router()}
}

func (f *fixture) do(t *testing.T, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func submission(no, truck, qty string) url.Values {
	return url.Values{
		"invoice_no": {no},
		"date":       {"01/04/2025"},
		"truck_no":   {truck},
		"qty":        {qty},
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestIndex_GetSuggestsSeed(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `value="LSG/2526/1"`)
	assert.Contains(t, body, `value="14/10/2026"`)
	assert.NotContains(t, body, `class="error"`)
}

func TestIndex_PostSuccess(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodPost, "/", submission("LSG/2526/1", " mh12ab1234 ", "10"))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Invoice LSG/2526/1 सफलतापूर्वक बन गई।")
	assert.Contains(t, body, "9,500.00")
	assert.Contains(t, body, "11,210.00")
	assert.Contains(t, body, `value="LSG/2526/2"`, "form moves on to the next number")

	rows, err := history.NewLog(f.cfg.HistoryFile).Rows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, history.Row{
		Date: "01/04/2025", InvoiceNo: "LSG/2526/1", TruckNo: "MH12AB1234",
		Qty: "10.00", Amount: "9,500.00", GrandTotal: "11,210.00",
	}, rows[0])

	state, err := os.ReadFile(f.cfg.StateFile)
	require.NoError(t, err)
	assert.JSONEq(t, `{"last_invoice":"LSG/2526/1"}`, string(state))

	doc, err := os.ReadFile(f.cfg.OutputFile)
	require.NoError(t, err)
	paras, err := documenttest.Paragraphs(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Invoice LSG/2526/1",
		"Truck MH12AB1234",
		"Total 11,210.00",
		"Rupees Eleven Thousand, Two Hundred Ten Only",
	}, paras)
}

func TestIndex_RejectsIncompleteForm(t *testing.T) {
	for _, field := range []string{"invoice_no", "date", "truck_no", "qty"} {
		t.Run(field, func(t *testing.T) {
			f := newFixture(t, true)
			form := submission("LSG/2526/1", "MH12", "10")
			form.Set(field, "   ")

			w := f.do(t, http.MethodPost, "/", form)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), msgFillAll)

			assert.False(t, exists(f.cfg.HistoryFile))
			assert.False(t, exists(f.cfg.StateFile))
			assert.False(t, exists(f.cfg.OutputFile))
		})
	}
}

func TestIndex_RejectsBadQuantity(t *testing.T) {
	for _, qty := range []string{"ten", "1,000", "-5"} {
		f := newFixture(t, true)

		w := f.do(t, http.MethodPost, "/", submission("LSG/2526/1", "MH12", qty))
		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, msgBadQuantity, qty)
		assert.Contains(t, body, `value="MH12"`, "submitted values are kept")
		assert.False(t, exists(f.cfg.HistoryFile))
		assert.False(t, exists(f.cfg.StateFile))
	}
}

func TestIndex_MissingTemplate(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(t, http.MethodPost, "/", submission("LSG/2526/1", "MH12", "10"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Template फाइल")
	assert.Contains(t, w.Body.String(), "नहीं मिली।")
	assert.False(t, exists(f.cfg.HistoryFile))
	assert.False(t, exists(f.cfg.OutputFile))
}

func TestIndex_RoundTrip(t *testing.T) {
	mirror := &fakeMirror{}
	f := newFixture(t, true, WithMirror(mirror))

	numbers := []string{"LSG/2526/1", "LSG/2526/2", "CUSTOM/9"}
	for _, no := range numbers {
		w := f.do(t, http.MethodPost, "/", submission(no, "MH12", "1"))
		require.Equal(t, http.StatusOK, w.Code)
		require.Contains(t, w.Body.String(), "सफलतापूर्वक")
	}

	rows, err := history.NewLog(f.cfg.HistoryFile).Rows()
	require.NoError(t, err)
	require.Len(t, rows, len(numbers))
	for i, no := range numbers {
		assert.Equal(t, no, rows[i].InvoiceNo)
	}
	raw, err := os.ReadFile(f.cfg.HistoryFile)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "Invoice No"))

	state, err := os.ReadFile(f.cfg.StateFile)
	require.NoError(t, err)
	assert.JSONEq(t, `{"last_invoice":"CUSTOM/9"}`, string(state))

	w := f.do(t, http.MethodGet, "/", nil)
	assert.Contains(t, w.Body.String(), `value="CUSTOM/10"`)

	doc, err := os.ReadFile(f.cfg.OutputFile)
	require.NoError(t, err)
	breaks, err := documenttest.PageBreaks(doc)
	require.NoError(t, err)
	assert.Equal(t, len(numbers)-1, breaks)
	paras, err := documenttest.Paragraphs(doc)
	require.NoError(t, err)
	assert.Contains(t, paras, "Invoice LSG/2526/1")
	assert.Contains(t, paras, "Invoice LSG/2526/2")
	assert.Contains(t, paras, "Invoice CUSTOM/9")

	assert.Len(t, mirror.rows, len(numbers))
}

func TestIndex_ConcurrentSubmissions(t *testing.T) {
	f := newFixture(t, true)

	const n = 8
	numbers := make([]string, n)
	for i := range numbers {
		numbers[i] = fmt.Sprintf("LSG/2526/%d", i+1)
	}

	var wg sync.WaitGroup
	codes := make([]int, n)
	for i, no := range numbers {
		wg.Add(1)
		go func(i int, no string) {
			defer wg.Done()
			codes[i] = f.do(t, http.MethodPost, "/", submission(no, "MH12", "1")).Code
		}(i, no)
	}
	wg.Wait()
	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, numbers[i])
	}

	rows, err := history.NewLog(f.cfg.HistoryFile).Rows()
	require.NoError(t, err)
	require.Len(t, rows, n)
	got := make([]string, 0, n)
	for _, row := range rows {
		got = append(got, row.InvoiceNo)
	}
	assert.ElementsMatch(t, numbers, got)

	raw, err := os.ReadFile(f.cfg.HistoryFile)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "Invoice No"))

	doc, err := os.ReadFile(f.cfg.OutputFile)
	require.NoError(t, err)
	breaks, err := documenttest.PageBreaks(doc)
	require.NoError(t, err)
	assert.Equal(t, n-1, breaks)

	stateRaw, err := os.ReadFile(f.cfg.StateFile)
	require.NoError(t, err)
	var state struct {
		LastInvoice string `json:"last_invoice"`
	}
	require.NoError(t, json.Unmarshal(stateRaw, &state))
	assert.Contains(t, numbers, state.LastInvoice)
	assert.Equal(t, rows[n-1].InvoiceNo, state.LastInvoice)
}

func TestIndex_MirrorFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t, true, WithMirror(&fakeMirror{err: errors.New("db down")}))

	w := f.do(t, http.MethodPost, "/", submission("LSG/2526/1", "MH12", "1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "सफलतापूर्वक")
}

func TestIndex_WriteFailureIsServerError(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, os.Mkdir(f.cfg.HistoryFile, 0o755))

	w := f.do(t, http.MethodPost, "/", submission("LSG/2526/1", "MH12", "1"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, exists(f.cfg.StateFile))
}

func TestIndex_CorruptStateFallsBack(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, os.WriteFile(f.cfg.StateFile, []byte("{oops"), 0o644))

	w := f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="LSG/2526/1"`)
}

func TestDownload(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodGet, "/download", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, msgNoDocument, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	f.do(t, http.MethodPost, "/", submission("LSG/2526/1", "MH12", "2"))

	first := f.do(t, http.MethodGet, "/download", nil)
	second := f.do(t, http.MethodGet, "/download", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "attachment; filename=latest_invoice.docx", first.Header().Get("Content-Disposition"))
	assert.Equal(t, docxContentType, first.Header().Get("Content-Type"))

	onDisk, err := os.ReadFile(f.cfg.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, onDisk, first.Body.Bytes())
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
}

func TestMakePDF(t *testing.T) {
	f := newFixture(t, true)
	for _, no := range []string{"LSG/2526/1", "LSG/2526/2", "LSG/2526/3"} {
		f.do(t, http.MethodPost, "/", submission(no, "MH12", "1"))
	}

	w := f.do(t, http.MethodGet, "/make_pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<span id="total">3</span>`)

	cases := []struct {
		count string
		want  []string
	}{
		{"99", []string{"LSG/2526/1", "LSG/2526/2", "LSG/2526/3"}},
		{"2", []string{"LSG/2526/2", "LSG/2526/3"}},
		{"0", nil},
		{"-2", nil},
	}
	for _, tc := range cases {
		w := f.do(t, http.MethodPost, "/make_pdf", url.Values{"count": {tc.count}})
		require.Equal(t, http.StatusOK, w.Code, tc.count)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=selected_invoices.pdf", w.Header().Get("Content-Disposition"))

		pdf := w.Body.Bytes()
		assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
		assert.Equal(t, len(tc.want), bytes.Count(pdf, []byte("Invoice No: ")), tc.count)
		for _, no := range tc.want {
			assert.Contains(t, string(pdf), "Invoice No: "+no, tc.count)
		}

		onDisk, err := os.ReadFile(f.cfg.BatchPDFFile)
		require.NoError(t, err)
		assert.Equal(t, pdf, onDisk)
	}
}

func TestMakePDF_EmptyHistory(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodGet, "/make_pdf", nil)
	assert.Contains(t, w.Body.String(), `<span id="total">0</span>`)

	w = f.do(t, http.MethodPost, "/make_pdf", url.Values{"count": {"5"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}

func TestMakePDF_UnreadableHistory(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, os.Mkdir(f.cfg.HistoryFile, 0o755))

	w := f.do(t, http.MethodGet, "/make_pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<span id="total">0</span>`)

	w = f.do(t, http.MethodPost, "/make_pdf", url.Values{"count": {"3"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = f.do(t, http.MethodGet, "/history.xlsx", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
}

func TestMakePDF_HandEditedHistory(t *testing.T) {
	f := newFixture(t, true)
	body := strings.Join(history.Header, ",") + "\n" +
		"01/04/2025,LSG/2526/1,MH\"12,1.00,950.00,\"1,121.00\"\n"
	require.NoError(t, os.WriteFile(f.cfg.HistoryFile, []byte(body), 0o644))

	w := f.do(t, http.MethodGet, "/make_pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<span id="total">1</span>`)

	w = f.do(t, http.MethodPost, "/make_pdf", url.Values{"count": {"1"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(w.Body.Bytes()), "Invoice No: LSG/2526/1")
}

func TestMakePDF_BadCount(t *testing.T) {
	f := newFixture(t, true)

	w := f.do(t, http.MethodPost, "/make_pdf", url.Values{"count": {"lots"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), msgBadCount)
}

func TestExportHistory(t *testing.T) {
	f := newFixture(t, true)
	f.do(t, http.MethodPost, "/", submission("LSG/2526/1", "MH12", "10"))

	w := f.do(t, http.MethodGet, "/history.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))

	book, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows("History")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "LSG/2526/1", rows[1][1])
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodGet, "/healthz", nil).Code)
}

func TestReadyz(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodGet, "/readyz", nil).Code)

	f = newFixture(t, false, WithMirror(&fakeMirror{}))
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodGet, "/readyz", nil).Code)

	f = newFixture(t, false, WithMirror(&fakeMirror{pingErr: errors.New("db down")}))
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/readyz", nil).Code)
}
