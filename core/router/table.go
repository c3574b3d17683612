package router

import (
	"github.com/searchktools/webframe/core/http"
)

// Methods maps an HTTP method name to its handler for one resource pattern.
type Methods map[string]http.Handler

// Entry is one resource: a path pattern and its method map.
type Entry struct {
	Pattern string
	Methods Methods
}

// Table is an ordered pattern -> Methods collection.
// Registering a pattern a second time returns the Methods of its first slot,
// so the pattern keeps its original position.
type Table struct {
	entries []*Entry
	index   map[string]int
}

// NewTable creates an empty resource table
func NewTable() *Table {
	return &Table{
		index: make(map[string]int),
	}
}

// Resource returns the method map for pattern, creating it at the end of the
// table on first use.
func (t *Table) Resource(pattern string) Methods {
	if i, ok := t.index[pattern]; ok {
		return t.entries[i].Methods
	}

	e := &Entry{Pattern: pattern, Methods: make(Methods)}
	t.index[pattern] = len(t.entries)
	t.entries = append(t.entries, e)
	return e.Methods
}

// Handle registers handler for (pattern, method)
func (t *Table) Handle(pattern, method string, handler http.Handler) {
	t.Resource(pattern)[method] = handler
}

// Len returns the number of patterns in the table
func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns the entries in registration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = *e
	}
	return out
}
