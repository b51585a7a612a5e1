package schema

import "fmt"

// System is the pseudo-service name addressing the system-level table.
const System = "system"

// Installed service names.
const (
	GasHeating   = "gasHeating"
	EvapCooling  = "evapCooling"
	AddonCooling = "addonCooling"
	ReverseCycle = "reverseCycle"
)

// Service is an installable appliance capability with its own field table.
type Service struct {
	Name           string
	Code           string // protocol group code, e.g. HGOM
	InstalledField string // boolean system field reporting presence
	Fields         *Table
}

// Registry holds the system table and every known service. Immutable after
// construction.
type Registry struct {
	system   *Table
	services []Service
	byName   map[string]int
}

// NewRegistry validates the tables and wires services to their installed flags.
func NewRegistry(system *Table, services ...Service) (*Registry, error) {
	r := &Registry{system: system, byName: make(map[string]int, len(services))}
	for _, s := range services {
		if s.Name == System {
			return nil, fmt.Errorf("registry: service name %q is reserved", System)
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate service %q", s.Name)
		}
		flag, ok := system.Lookup(s.InstalledField)
		if !ok {
			return nil, fmt.Errorf("registry: service %q: installed field %q not in system table", s.Name, s.InstalledField)
		}
		if flag.Codes == nil {
			return nil, fmt.Errorf("registry: service %q: installed field %q has no code table", s.Name, s.InstalledField)
		}
		if s.Fields == nil {
			return nil, fmt.Errorf("registry: service %q has no field table", s.Name)
		}
		r.byName[s.Name] = len(r.services)
		r.services = append(r.services, s)
	}
	return r, nil
}

// System returns the system-level field table.
func (r *Registry) System() *Table { return r.system }

// Services returns all known services in declaration order.
func (r *Registry) Services() []Service {
	out := make([]Service, len(r.services))
	copy(out, r.services)
	return out
}

// Service returns the named service.
func (r *Registry) Service(name string) (Service, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Service{}, false
	}
	return r.services[i], true
}

// NewService instantiates the service template for a protocol group code.
func NewService(name, code, installedField string) Service {
	return Service{Name: name, Code: code, InstalledField: installedField, Fields: ServiceFields(code)}
}

var defaultRegistry = func() *Registry {
	r, err := NewRegistry(systemTable,
		NewService(GasHeating, "HGOM", GasHeating),
		NewService(EvapCooling, "ECOM", EvapCooling),
		NewService(AddonCooling, "CGOM", AddonCooling),
		NewService(ReverseCycle, "RCOM", ReverseCycle),
	)
	if err != nil {
		panic(err)
	}
	return r
}()

// Default returns the Rinnai Touch registry.
func Default() *Registry { return defaultRegistry }
