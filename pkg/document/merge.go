package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const mainPart = "word/document.xml"

const pageBreak = `<w:p><w:r><w:br w:type="page"/></w:r></w:p>`

var ErrNoBody = errors.New("document has no body")

// Merger appends one .docx after another.
type Merger struct{}

func NewMerger() *Merger {
	return &Merger{}
}

// Append returns master followed by a page break and the body of next.
// Parts other than the main document (styles, media, relationships) are
// taken from master, so both documents should come from the same template.
func (Merger) Append(master, next []byte) ([]byte, error) {
	mr, err := zip.NewReader(bytes.NewReader(master), int64(len(master)))
	if err != nil {
		return nil, fmt.Errorf("open master document: %w", err)
	}
	nr, err := zip.NewReader(bytes.NewReader(next), int64(len(next)))
	if err != nil {
		return nil, fmt.Errorf("open appended document: %w", err)
	}

	masterXML, err := readPart(mr, mainPart)
	if err != nil {
		return nil, err
	}
	nextXML, err := readPart(nr, mainPart)
	if err != nil {
		return nil, err
	}

	inner, err := bodyContent(nextXML)
	if err != nil {
		return nil, fmt.Errorf("appended document: %w", err)
	}
	at, err := insertionPoint(masterXML)
	if err != nil {
		return nil, fmt.Errorf("master document: %w", err)
	}
	merged := masterXML[:at] + pageBreak + inner + masterXML[at:]

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range mr.File {
		if f.Name != mainPart {
			if err := w.Copy(f); err != nil {
				return nil, fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified})
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(fw, merged); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readPart(r *zip.Reader, name string) (string, error) {
	f, err := r.Open(name)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(b), nil
}

// bodyContent is everything inside <w:body> except the section properties.
func bodyContent(xml string) (string, error) {
	open := strings.Index(xml, "<w:body")
	if open < 0 {
		return "", ErrNoBody
	}
	gt := strings.Index(xml[open:], ">")
	if gt < 0 {
		return "", ErrNoBody
	}
	start := open + gt + 1
	end := strings.LastIndex(xml, "</w:body>")
	if end < start {
		return "", ErrNoBody
	}
	inner := xml[start:end]
	if i := sectPrIndex(inner); i >= 0 {
		inner = inner[:i]
	}
	return inner, nil
}

// insertionPoint is where appended content goes: before the body-level
// section properties, or before </w:body> when there are none.
func insertionPoint(xml string) (int, error) {
	end := strings.LastIndex(xml, "</w:body>")
	if end < 0 {
		return 0, ErrNoBody
	}
	if i := sectPrIndex(xml[:end]); i >= 0 {
		return i, nil
	}
	return end, nil
}

// sectPrIndex finds a trailing <w:sectPr> that is a direct child of the
// body, i.e. one that follows the last paragraph or table.
func sectPrIndex(s string) int {
	i := strings.LastIndex(s, "<w:sectPr")
	if i < 0 {
		return -1
	}
	last := strings.LastIndex(s, "</w:p>")
	if t := strings.LastIndex(s, "</w:tbl>"); t > last {
		last = t
	}
	if i < last {
		return -1
	}
	return i
}

// WriteFile replaces path with data through a temporary file in the same
// directory, so readers never see a half-written document.
func WriteFile(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
