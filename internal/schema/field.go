package schema

import (
	"fmt"
	"slices"
)

// Field describes one configuration value exposed by the appliance.
type Field struct {
	Name        string
	Path        Path
	Codes       *CodeTable // nil: raw value passes through verbatim
	Writable    bool
	Services    []string // services the field is meaningful for; empty for system-level fields
	Description string
}

// AppliesTo reports whether the field lists service among its applicable services.
func (f Field) AppliesTo(service string) bool {
	return slices.Contains(f.Services, service)
}

// Table is an ordered, name-indexed set of field definitions.
type Table struct {
	fields []Field
	index  map[string]int
}

// NewTable builds a table; duplicate field names are rejected.
func NewTable(fields ...Field) (*Table, error) {
	t := &Table{fields: make([]Field, 0, len(fields)), index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if _, dup := t.index[f.Name]; dup {
			return nil, fmt.Errorf("table: duplicate field %q", f.Name)
		}
		t.index[f.Name] = len(t.fields)
		t.fields = append(t.fields, f)
	}
	return t, nil
}

func mustTable(fields ...Field) *Table {
	t, err := NewTable(fields...)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the named field.
func (t *Table) Lookup(name string) (Field, bool) {
	i, ok := t.index[name]
	if !ok {
		return Field{}, false
	}
	return t.fields[i], true
}

// Fields returns all fields in declaration order.
func (t *Table) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// For returns the fields applicable to service, in declaration order.
func (t *Table) For(service string) []Field {
	var out []Field
	for _, f := range t.fields {
		if f.AppliesTo(service) {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of fields.
func (t *Table) Len() int { return len(t.fields) }
