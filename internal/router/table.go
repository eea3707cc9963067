package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Silo is one destination and the keywords that select it.
type Silo struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// Table is an ordered keyword map. Order matters: the first silo with a
// matching keyword wins, so it is taken from the file as written rather than
// from a Go map.
type Table struct {
	silos []Silo
}

// NewTable builds a table from silos in priority order. Keywords are stored lower-cased.
func NewTable(silos ...Silo) *Table {
	t := &Table{}
	for _, s := range silos {
		t.add(s.Name, s.Keywords)
	}
	return t
}

func (t *Table) add(name string, keywords []string) {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kw = append(kw, k)
		}
	}
	t.silos = append(t.silos, Silo{Name: name, Keywords: kw})
}

// Silos returns a copy of the table in priority order.
func (t *Table) Silos() []Silo {
	out := make([]Silo, len(t.silos))
	for i, s := range t.silos {
		out[i] = Silo{Name: s.Name, Keywords: append([]string(nil), s.Keywords...)}
	}
	return out
}

// Len returns the number of silos.
func (t *Table) Len() int { return len(t.silos) }

// Match returns the first silo having a keyword contained in query,
// ignoring case, along with that keyword.
func (t *Table) Match(query string) (silo, keyword string, ok bool) {
	q := strings.ToLower(query)
	for _, s := range t.silos {
		for _, k := range s.Keywords {
			if strings.Contains(q, k) {
				return s.Name, k, true
			}
		}
	}
	return "", "", false
}

// ParseTable decodes a JSON object mapping silo names to keyword arrays,
// keeping the object's key order.
//
//	{"Legal": ["contract", "nda"], "Finance": ["invoice"]}
func ParseTable(data []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("router: parse table: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("router: parse table: expected a JSON object")
	}

	t := &Table{}
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("router: parse table: %w", err)
		}
		name := tok.(string) // object keys are always strings
		var keywords []string
		if err := dec.Decode(&keywords); err != nil {
			return nil, fmt.Errorf("router: parse table: silo %q: %w", name, err)
		}
		if seen[name] {
			return nil, fmt.Errorf("router: parse table: duplicate silo %q", name)
		}
		seen[name] = true
		t.add(name, keywords)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("router: parse table: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("router: parse table: trailing data after object")
	}
	return t, nil
}

// LoadTable reads a table from path. An empty path yields an empty table,
// which routes everything to the default destination.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return &Table{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("router: load table: %w", err)
	}
	return ParseTable(data)
}
