// Package gazetteer holds the static registry of named campus locations.
package gazetteer

import (
	"strings"
)

const (
	CategoryBuilding     = "building"
	CategoryLostAndFound = "lost_and_found"
)

// Record is one named campus location on the abstract campus plane.
type Record struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Category string `json:"type"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// Gazetteer is read-only after construction and safe for concurrent use.
// Iteration follows source insertion order.
type Gazetteer struct {
	records []Record
	byKey   map[string]int
}

// New builds a gazetteer from records in the given order. Later duplicates
// of a key are ignored.
func New(records ...Record) *Gazetteer {
	g := &Gazetteer{
		records: make([]Record, 0, len(records)),
		byKey:   make(map[string]int, len(records)),
	}
	for _, r := range records {
		r.Key = strings.ToLower(strings.TrimSpace(r.Key))
		if _, dup := g.byKey[r.Key]; dup {
			continue
		}
		g.byKey[r.Key] = len(g.records)
		g.records = append(g.records, r)
	}
	return g
}

func (g *Gazetteer) Len() int {
	return len(g.records)
}

// Records returns a copy of all records in insertion order.
func (g *Gazetteer) Records() []Record {
	out := make([]Record, len(g.records))
	copy(out, g.records)
	return out
}

// Names lists display names in insertion order.
func (g *Gazetteer) Names() []string {
	names := make([]string, len(g.records))
	for i, r := range g.records {
		names[i] = r.Name
	}
	return names
}

func (g *Gazetteer) Lookup(key string) (Record, bool) {
	i, ok := g.byKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Record{}, false
	}
	return g.records[i], true
}

// FindByName returns the first record whose display name equals name.
func (g *Gazetteer) FindByName(name string) (Record, bool) {
	for _, r := range g.records {
		if r.Name == name {
			return r, true
		}
	}
	return Record{}, false
}

func (g *Gazetteer) ByCategory(category string) []Record {
	var out []Record
	for _, r := range g.records {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}
