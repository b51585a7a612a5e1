package appliance

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"rinnai_gateway/internal/schema"
)

// StateTree is the merged appliance state: group -> section -> field -> value.
// Leaves are JSON scalars (numbers as json.Number).
type StateTree map[string]map[string]map[string]any

// Lookup returns the leaf addressed by p.
func (t StateTree) Lookup(p schema.Path) (any, bool) {
	sections, ok := t[p.Group]
	if !ok {
		return nil, false
	}
	fields, ok := sections[p.Section]
	if !ok {
		return nil, false
	}
	v, ok := fields[p.Field]
	return v, ok
}

// Merge copies every leaf of g into t; leaves already present are overwritten.
func (t StateTree) Merge(g StateTree) {
	for group, sections := range g {
		if sections == nil {
			continue
		}
		dstSections, ok := t[group]
		if !ok {
			dstSections = make(map[string]map[string]any, len(sections))
			t[group] = dstSections
		}
		for section, fields := range sections {
			dstFields, ok := dstSections[section]
			if !ok {
				dstFields = make(map[string]any, len(fields))
				dstSections[section] = dstFields
			}
			for field, v := range fields {
				dstFields[field] = v
			}
		}
	}
}

// DecodeTree parses a status payload: one or more JSON values, each either a
// group object or an array of group objects, merged in order.
func DecodeTree(payload []byte) (StateTree, error) {
	tree := StateTree{}
	dec := json.NewDecoder(bytes.NewReader(payload))
	values := 0
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		values++
		groups, err := splitGroups(raw)
		if err != nil {
			return nil, err
		}
		for _, g := range groups {
			var group StateTree
			gd := json.NewDecoder(bytes.NewReader(g))
			gd.UseNumber()
			if err := gd.Decode(&group); err != nil {
				return nil, fmt.Errorf("%w: group: %v", ErrMalformedFrame, err)
			}
			tree.Merge(group)
		}
	}
	if values == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedFrame)
	}
	return tree, nil
}

func splitGroups(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty value", ErrMalformedFrame)
	}
	switch trimmed[0] {
	case '{':
		return []json.RawMessage{trimmed}, nil
	case '[':
		var groups []json.RawMessage
		if err := json.Unmarshal(trimmed, &groups); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return groups, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %q", ErrMalformedFrame, trimmed[0])
	}
}
