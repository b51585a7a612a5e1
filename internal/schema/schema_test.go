package schema

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParsePath(t *testing.T) {
	cases := []struct {
		in      string
		want    Path
		wantErr bool
	}{
		{in: "SYST.OSS.MD", want: Path{"SYST", "OSS", "MD"}},
		{in: "HGOM.GSO.SP", want: Path{"HGOM", "GSO", "SP"}},
		{in: "SYST.OSS", wantErr: true},
		{in: "SYST.OSS.MD.X", wantErr: true},
		{in: "SYST..MD", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParsePath(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			if got.String() != tc.in {
				t.Fatalf("String() = %q, want %q", got.String(), tc.in)
			}
		})
	}
}

func TestMustParsePath_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustParsePath("A.B")
}

func TestPathNest_Encodes3Levels(t *testing.T) {
	b, err := json.Marshal(MustParsePath("SYST.OSS.MD").Nest("H"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"SYST":{"OSS":{"MD":"H"}}}` {
		t.Fatalf("unexpected payload %s", b)
	}
}

func TestNewCodeTable_RejectsCollisions(t *testing.T) {
	if _, err := NewCodeTable(Code{"Y", true}, Code{"T", true}); err == nil {
		t.Fatalf("expected error for duplicate semantic value")
	}
	if _, err := NewCodeTable(Code{"Y", true}, Code{"Y", false}); err == nil {
		t.Fatalf("expected error for duplicate code")
	}
}

func TestCodeTable_DecodeRawForms(t *testing.T) {
	clock := MustCodeTable(Code{"1", 12}, Code{"2", 24})
	for _, raw := range []any{"1", float64(1), json.Number("1"), 1} {
		v, ok := clock.Decode(raw)
		if !ok || v != 12 {
			t.Fatalf("Decode(%#v) = %v, %v", raw, v, ok)
		}
	}
	if _, ok := clock.Decode("9"); ok {
		t.Fatalf("expected unknown code to fail")
	}
	if code, ok := clock.Encode("24"); !ok || code != "2" {
		t.Fatalf("Encode(24) = %q, %v", code, ok)
	}
}

// every table in the registry must be invertible: decode(code) then encode
// the semantic value yields the original code
func TestRegistry_CodeTablesRoundTrip(t *testing.T) {
	reg := Default()
	tables := []*Table{reg.System()}
	for _, s := range reg.Services() {
		tables = append(tables, s.Fields)
	}
	checked := 0
	for _, tbl := range tables {
		for _, f := range tbl.Fields() {
			if f.Codes == nil {
				continue
			}
			seen := map[string]string{}
			for _, c := range f.Codes.Codes() {
				v, ok := f.Codes.Decode(c.Code)
				if !ok {
					t.Fatalf("%s: code %q does not decode", f.Name, c.Code)
				}
				key := FormatValue(v)
				if prev, dup := seen[key]; dup {
					t.Fatalf("%s: value %q from codes %q and %q", f.Name, key, prev, c.Code)
				}
				seen[key] = c.Code
				back, ok := f.Codes.Encode(key)
				if !ok || back != c.Code {
					t.Fatalf("%s: round trip %q -> %q -> %q", f.Name, c.Code, key, back)
				}
				checked++
			}
		}
	}
	if checked == 0 {
		t.Fatalf("no code tables checked")
	}
}

func TestDefaultRegistry_Services(t *testing.T) {
	reg := Default()
	want := map[string]string{
		GasHeating:   "HGOM",
		EvapCooling:  "ECOM",
		AddonCooling: "CGOM",
		ReverseCycle: "RCOM",
	}
	if len(reg.Services()) != len(want) {
		t.Fatalf("got %d services, want %d", len(reg.Services()), len(want))
	}
	for name, code := range want {
		s, ok := reg.Service(name)
		if !ok {
			t.Fatalf("service %s missing", name)
		}
		if s.Code != code {
			t.Fatalf("service %s code = %s, want %s", name, s.Code, code)
		}
		for _, f := range s.Fields.Fields() {
			if f.Path.Group != code {
				t.Fatalf("service %s field %s has group %s", name, f.Name, f.Path.Group)
			}
		}
		flag, ok := reg.System().Lookup(s.InstalledField)
		if !ok || flag.Path.Section != "AVM" {
			t.Fatalf("service %s installed flag %q not an AVM field", name, s.InstalledField)
		}
	}
	if _, ok := reg.Service(System); ok {
		t.Fatalf("system must not be a registered service")
	}
}

func TestServiceFields_Applicability(t *testing.T) {
	tbl := ServiceFields("RCOM")
	if len(tbl.For(ReverseCycle)) != tbl.Len() {
		t.Fatalf("reverseCycle should see every field")
	}
	for _, f := range tbl.For(GasHeating) {
		if f.Name == "reverseCycleMode" {
			t.Fatalf("reverseCycleMode must not apply to gasHeating")
		}
	}
	if got := len(tbl.For(EvapCooling)); got != 0 {
		t.Fatalf("evapCooling has no template fields, got %d", got)
	}
	sp, ok := tbl.Lookup("setTemp")
	if !ok || !sp.Writable || sp.Codes != nil || sp.Path.String() != "RCOM.GSO.SP" {
		t.Fatalf("unexpected setTemp definition: %+v", sp)
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	sys := mustTable(Field{Name: "hg", Path: MustParsePath("SYST.AVM.HG"), Codes: yesNo}, Field{Name: "raw", Path: MustParsePath("SYST.AVM.XX")})
	cases := []struct {
		name    string
		svcs    []Service
		errPart string
	}{
		{"reserved", []Service{NewService(System, "HGOM", "hg")}, "reserved"},
		{"duplicate", []Service{NewService("a", "HGOM", "hg"), NewService("a", "HGOM", "hg")}, "duplicate"},
		{"missing flag", []Service{NewService("a", "HGOM", "nope")}, "not in system table"},
		{"flag without codes", []Service{NewService("a", "HGOM", "raw")}, "no code table"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry(sys, tc.svcs...)
			if err == nil || !strings.Contains(err.Error(), tc.errPart) {
				t.Fatalf("expected error containing %q, got %v", tc.errPart, err)
			}
		})
	}
}

func TestNewTable_DuplicateName(t *testing.T) {
	_, err := NewTable(Field{Name: "a"}, Field{Name: "a"})
	if err == nil {
		t.Fatalf("expected duplicate error")
	}
}
