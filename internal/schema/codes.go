package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Code pairs a compact protocol code with the semantic value it stands for.
type Code struct {
	Code  string
	Value any
}

// CodeTable is a bijective mapping between protocol codes and semantic values.
// Semantic values are compared by their canonical text form (FormatValue), so
// the table can be inverted from the string values received at the boundary.
type CodeTable struct {
	codes  []Code
	decode map[string]any
	encode map[string]string
}

// NewCodeTable builds a table and rejects duplicate codes or duplicate values.
func NewCodeTable(pairs ...Code) (*CodeTable, error) {
	t := &CodeTable{
		codes:  make([]Code, 0, len(pairs)),
		decode: make(map[string]any, len(pairs)),
		encode: make(map[string]string, len(pairs)),
	}
	for _, p := range pairs {
		if _, dup := t.decode[p.Code]; dup {
			return nil, fmt.Errorf("code table: duplicate code %q", p.Code)
		}
		key := FormatValue(p.Value)
		if other, dup := t.encode[key]; dup {
			return nil, fmt.Errorf("code table: value %q mapped by both %q and %q", key, other, p.Code)
		}
		t.decode[p.Code] = p.Value
		t.encode[key] = p.Code
		t.codes = append(t.codes, p)
	}
	return t, nil
}

// MustCodeTable is NewCodeTable for static tables.
func MustCodeTable(pairs ...Code) *CodeTable {
	t, err := NewCodeTable(pairs...)
	if err != nil {
		panic(err)
	}
	return t
}

// Decode maps a raw protocol value to its semantic value.
func (t *CodeTable) Decode(raw any) (any, bool) {
	v, ok := t.decode[FormatValue(raw)]
	return v, ok
}

// Encode maps a requested semantic value back to its protocol code.
func (t *CodeTable) Encode(value string) (string, bool) {
	c, ok := t.encode[value]
	return c, ok
}

// Codes returns the table entries in declaration order.
func (t *CodeTable) Codes() []Code {
	out := make([]Code, len(t.codes))
	copy(out, t.codes)
	return out
}

// Values returns the canonical text of every semantic value, in declaration order.
func (t *CodeTable) Values() []string {
	out := make([]string, 0, len(t.codes))
	for _, c := range t.codes {
		out = append(out, FormatValue(c.Value))
	}
	return out
}

// FormatValue renders a scalar state or semantic value as canonical text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// yesNo is the Y/N flag table shared by most boolean fields.
var yesNo = MustCodeTable(Code{"Y", true}, Code{"N", false})
