package schema

import (
	"fmt"
	"strings"
)

// pathSegments is the fixed depth of every field locator: group.section.field.
const pathSegments = 3

// Path locates a leaf value in the merged appliance state tree.
type Path struct {
	Group   string
	Section string
	Field   string
}

// ParsePath compiles a dot-delimited locator such as "SYST.OSS.MD".
func ParsePath(s string) (Path, error) {
	parts := strings.Split(s, ".")
	if len(parts) != pathSegments {
		return Path{}, fmt.Errorf("path %q: want %d segments, got %d", s, pathSegments, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return Path{}, fmt.Errorf("path %q: segment %d is empty", s, i+1)
		}
	}
	return Path{Group: parts[0], Section: parts[1], Field: parts[2]}, nil
}

// MustParsePath is ParsePath for static tables; it panics on a bad locator.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	return p.Group + "." + p.Section + "." + p.Field
}

// Nest builds the single-field update object {group: {section: {field: v}}}.
func (p Path) Nest(v any) map[string]map[string]map[string]any {
	return map[string]map[string]map[string]any{
		p.Group: {p.Section: {p.Field: v}},
	}
}
