// Package catalog resolves selected session and package identifiers to display
// names and prices.
package catalog

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Placeholder stands in for empty values. The messaging API rejects blank
// template parameters.
const Placeholder = "—"

//go:embed catalog.yaml
var defaultCatalog []byte

// Entry is one selectable item.
type Entry struct {
	ID    string  `yaml:"id" json:"id"`
	Name  string  `yaml:"name" json:"name"`
	Price float64 `yaml:"price" json:"price"`
}

type Labels struct {
	Sessions string `yaml:"sessions"`
	Packages string `yaml:"packages"`
}

type document struct {
	Currency string  `yaml:"currency"`
	Labels   Labels  `yaml:"labels"`
	Entries  []Entry `yaml:"entries"`
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	currency string
	labels   Labels
	entries  map[string]Entry
	order    []string
}

// Item is a resolved selection. Known is false when the id is not in the catalog.
type Item struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Known bool    `json:"known"`
}

// Summary is the human readable outcome of a selection.
type Summary struct {
	Text      string  `json:"text"`
	Items     []Item  `json:"items"`
	Total     float64 `json:"total"`
	TotalText string  `json:"total_text"`
}

// New builds a catalog from entries. Duplicate or empty ids are rejected.
func New(currency string, labels Labels, entries []Entry) (*Catalog, error) {
	if labels.Sessions == "" {
		labels.Sessions = "Sessions"
	}
	if labels.Packages == "" {
		labels.Packages = "Packages"
	}
	c := &Catalog{
		currency: currency,
		labels:   labels,
		entries:  make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		e.ID = strings.TrimSpace(e.ID)
		if e.ID == "" {
			return nil, fmt.Errorf("catalog entry with empty id")
		}
		if _, dup := c.entries[e.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %q", e.ID)
		}
		if e.Price < 0 {
			return nil, fmt.Errorf("catalog entry %q has negative price", e.ID)
		}
		c.entries[e.ID] = e
		c.order = append(c.order, e.ID)
	}
	return c, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing catalog: %w", err)
	}
	return New(doc.Currency, doc.Labels, doc.Entries)
}

// Load reads the catalog at path, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading catalog: %w", err)
	}
	return Parse(data)
}

func (c *Catalog) Lookup(id string) (Entry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// Entries returns all entries in file order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

func (c *Catalog) Currency() string { return c.currency }

// Summarize resolves the selection. Unknown ids keep their raw id as name and
// add nothing to the total.
func (c *Catalog) Summarize(sessions, packages []string) Summary {
	var s Summary
	var parts []string
	for _, group := range []struct {
		label string
		ids   []string
	}{
		{c.labels.Sessions, sessions},
		{c.labels.Packages, packages},
	} {
		if len(group.ids) == 0 {
			continue
		}
		names := make([]string, 0, len(group.ids))
		for _, id := range group.ids {
			item := c.resolve(id)
			s.Items = append(s.Items, item)
			s.Total += item.Price
			names = append(names, item.Name)
		}
		parts = append(parts, group.label+": "+strings.Join(names, ", "))
	}

	s.Text = strings.Join(parts, " | ")
	if s.Text == "" {
		s.Text = Placeholder
	}
	s.TotalText = Placeholder
	if len(s.Items) > 0 {
		s.TotalText = c.FormatPrice(s.Total)
	}
	return s
}

func (c *Catalog) resolve(id string) Item {
	e, ok := c.entries[id]
	if !ok {
		return Item{ID: id, Name: id}
	}
	name := e.Name
	if name == "" {
		name = id
	}
	return Item{ID: id, Name: name, Price: e.Price, Known: true}
}

// FormatPrice renders an amount with the catalog currency, dropping the
// fraction for whole amounts.
func (c *Catalog) FormatPrice(amount float64) string {
	var n string
	if amount == math.Trunc(amount) {
		n = strconv.FormatFloat(amount, 'f', 0, 64)
	} else {
		n = strconv.FormatFloat(amount, 'f', 2, 64)
	}
	return c.currency + n
}
