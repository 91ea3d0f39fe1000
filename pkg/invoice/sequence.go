package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	ErrStateAbsent  = errors.New("invoice state file does not exist")
	ErrStateCorrupt = errors.New("invoice state file is corrupt")
)

// NextNumber suggests the identifier following last. An empty last yields
// seed. The segment after the final '/' is incremented when it is all ASCII
// digits; anything else is returned unchanged.
func NextNumber(last, seed string) string {
	if last == "" {
		return seed
	}
	i := strings.LastIndex(last, "/")
	if i < 0 {
		return last
	}
	prefix, tail := last[:i], last[i+1:]
	if !isDigits(tail) {
		return last
	}
	n, err := strconv.ParseUint(tail, 10, 64)
	if err != nil {
		return last
	}
	return prefix + "/" + strconv.FormatUint(n+1, 10)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

type state struct {
	LastInvoice *string `json:"last_invoice"`
}

// StateStore persists the last submitted invoice number as
// {"last_invoice": "..."}. It assumes a single writer.
type StateStore struct {
	Path     string
	Fallback string
}

func NewStateStore(path, fallback string) *StateStore {
	return &StateStore{Path: path, Fallback: fallback}
}

// Load returns the stored number. On failure it returns Fallback together
// with an error wrapping ErrStateAbsent or ErrStateCorrupt. A file without
// a last_invoice key yields Fallback and no error.
func (s *StateStore) Load() (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return s.Fallback, ErrStateAbsent
	}
	if err != nil {
		return s.Fallback, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return s.Fallback, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}
	if st.LastInvoice == nil {
		return s.Fallback, nil
	}
	return *st.LastInvoice, nil
}

// Save overwrites the state file with number.
func (s *StateStore) Save(number string) error {
	data, err := json.Marshal(state{LastInvoice: &number})
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.Path, data, 0o644); err != nil {
		return fmt.Errorf("save invoice state: %w", err)
	}
	return nil
}
