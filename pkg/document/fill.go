// pkg/document/fill.go

package document

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	docxlib "github.com/nguyenthenguyen/docx"
	"github.com/sirupsen/logrus"
)

var ErrTemplateMissing = errors.New("invoice template not found")

// Filler renders a .docx template. Placeholders are written as
// {{ key }} or {{key}} inside a single text run. Placeholders left over
// after filling are kept verbatim and reported as a warning.
type Filler struct {
	logger logrus.FieldLogger
}

func NewFiller(logger logrus.FieldLogger) *Filler {
	return &Filler{logger: logger}
}

// Fill replaces every placeholder of values in the template at path and
// returns the resulting document.
func (f *Filler) Fill(path string, values map[string]string) ([]byte, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateMissing, path)
	}

	r, err := docxlib.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	defer r.Close()

	doc := r.Editable()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, placeholder := range []string{"{{ " + k + " }}", "{{" + k + "}}"} {
			if err := doc.Replace(placeholder, values[k], -1); err != nil {
				return nil, fmt.Errorf("fill %s: %w", k, err)
			}
		}
	}

	if left := strings.Count(doc.GetContent(), "{{"); left > 0 && f.logger != nil {
		f.logger.WithFields(logrus.Fields{
			"template": path,
			"unfilled": left,
		}).Warn("template placeholders left unfilled")
	}

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return nil, fmt.Errorf("write filled document: %w", err)
	}
	return buf.Bytes(), nil
}
