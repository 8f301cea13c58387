package allowlist

import "strings"

// Collector is a field agent permitted to submit records.
type Collector struct {
	ID          string `json:"collectorId"`
	DisplayName string `json:"displayName"`
}

// Directory is an order-preserving set of collectors keyed by ID.
// Insertion order is kept; lookups are O(1).
type Directory struct {
	order []string
	byID  map[string]Collector
}

func NewDirectory() *Directory {
	return &Directory{byID: make(map[string]Collector)}
}

// FromRows builds a directory from range rows of [id, displayName].
// Rows with a blank id are skipped and a repeated id keeps its first row.
func FromRows(rows [][]string) *Directory {
	d := NewDirectory()
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		c := Collector{ID: strings.TrimSpace(row[0])}
		if len(row) > 1 {
			c.DisplayName = strings.TrimSpace(row[1])
		}
		if c.ID == "" {
			continue
		}
		d.Add(c)
	}
	return d
}

// Add inserts c at the end. It returns false when the ID is already present.
func (d *Directory) Add(c Collector) bool {
	if _, ok := d.byID[c.ID]; ok {
		return false
	}
	d.byID[c.ID] = c
	d.order = append(d.order, c.ID)
	return true
}

// Remove deletes id, keeping the relative order of the rest.
func (d *Directory) Remove(id string) bool {
	if _, ok := d.byID[id]; !ok {
		return false
	}
	delete(d.byID, id)
	kept := d.order[:0]
	for _, existing := range d.order {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	d.order = kept
	return true
}

func (d *Directory) Contains(id string) bool {
	_, ok := d.byID[id]
	return ok
}

func (d *Directory) Get(id string) (Collector, bool) {
	c, ok := d.byID[id]
	return c, ok
}

func (d *Directory) Len() int { return len(d.order) }

// List returns the collectors in order.
func (d *Directory) List() []Collector {
	out := make([]Collector, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}

// Rows renders the directory back into range rows.
func (d *Directory) Rows() [][]string {
	rows := make([][]string, 0, len(d.order))
	for _, id := range d.order {
		c := d.byID[id]
		rows = append(rows, []string{c.ID, c.DisplayName})
	}
	return rows
}
