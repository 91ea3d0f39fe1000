// Package documenttest builds small .docx files for tests.
package documenttest

import (
	"archive/zip"
	"bytes"
	"html"
	"io"
	"regexp"
	"strings"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

const packageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

const documentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

const sectPr = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr>`

// Build returns a .docx whose body holds one paragraph per entry.
func Build(paragraphs ...string) []byte {
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		body.WriteString(html.EscapeString(p))
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + sectPr + `</w:body></w:document>`

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", contentTypes},
		{"_rels/.rels", packageRels},
		{"word/document.xml", doc},
		{"word/_rels/document.xml.rels", documentRels},
	}
	for _, p := range parts {
		fw, err := w.Create(p.name)
		if err != nil {
			panic(err)
		}
		if _, err := io.WriteString(fw, p.body); err != nil {
			panic(err)
		}
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// MainPart returns the raw word/document.xml of a .docx.
func MainPart(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	f, err := r.Open("word/document.xml")
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	return string(b), err
}

var (
	paragraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	textRe      = regexp.MustCompile(`(?s)<w:t[^>]*>(.*?)</w:t>`)
)

// Paragraphs returns the text of each paragraph in the main part.
// Page-break paragraphs come back as empty strings.
func Paragraphs(data []byte) ([]string, error) {
	doc, err := MainPart(data)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range paragraphRe.FindAllString(doc, -1) {
		var sb strings.Builder
		for _, m := range textRe.FindAllStringSubmatch(p, -1) {
			sb.WriteString(html.UnescapeString(m[1]))
		}
		out = append(out, sb.String())
	}
	return out, nil
}

// PageBreaks counts explicit page breaks in the main part.
func PageBreaks(data []byte) (int, error) {
	doc, err := MainPart(data)
	if err != nil {
		return 0, err
	}
	return strings.Count(doc, `<w:br w:type="page"/>`), nil
}
