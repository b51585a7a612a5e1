package service

import (
	"rinnai_gateway/internal/appliance"
	"rinnai_gateway/internal/schema"
)

// Translate builds the configuration view of tree. Fields missing from the
// tree, or whose code is not in the field's code table, are omitted.
func Translate(reg *schema.Registry, tree appliance.StateTree) Config {
	system := translateFields(reg.System().Fields(), tree)
	cfg := Config{schema.System: system}

	for _, svc := range reg.Services() {
		if installed, _ := system[svc.InstalledField].(bool); !installed {
			continue
		}
		cfg[svc.Name] = translateFields(svc.Fields.For(svc.Name), tree)
	}
	return cfg
}

func translateFields(fields []schema.Field, tree appliance.StateTree) Values {
	out := make(Values, len(fields))
	for _, f := range fields {
		if v, ok := translateField(f, tree); ok {
			out[f.Name] = v
		}
	}
	return out
}

func translateField(f schema.Field, tree appliance.StateTree) (any, bool) {
	raw, ok := tree.Lookup(f.Path)
	if !ok {
		return nil, false
	}
	if f.Codes == nil {
		return raw, true
	}
	return f.Codes.Decode(raw)
}
