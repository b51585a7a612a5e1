package appliance

import (
	"bufio"
	"errors"
	"strings"
	"testing"
	"time"

	"rinnai_gateway/internal/schema"
)

func scanAll(t *testing.T, in string) []string {
	t.Helper()
	sc := bufio.NewScanner(strings.NewReader(in))
	sc.Split(SplitFrames)
	var out []string
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestSplitFrames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "handshake then frame",
			in:   `*HELLO*N000001[{"SYST":{"CFG":{"TU":"C"}}}]`,
			want: []string{"*HELLO*", `N000001[{"SYST":{"CFG":{"TU":"C"}}}]`},
		},
		{
			name: "brackets inside strings",
			in:   `N000002{"A":{"B":{"C":"x]}"}}}N000003[]`,
			want: []string{`N000002{"A":{"B":{"C":"x]}"}}}`, "N000003[]"},
		},
		{
			name: "escaped quote inside string",
			in:   `N000004{"A":{"B":{"C":"a\"]"}}}`,
			want: []string{`N000004{"A":{"B":{"C":"a\"]"}}}`},
		},
		{
			name: "whitespace between frames",
			in:   "N000005[]\r\n  N000006{}\n",
			want: []string{"N000005[]", "N000006{}"},
		},
		{
			name: "garbage is resynchronised",
			in:   `garbageN000007[]`,
			want: []string{"garbage", "N000007[]"},
		},
		{
			name: "bad sequence digits",
			in:   `N00x001[]*HELLO*`,
			want: []string{"N00x001[]", "*HELLO*"},
		},
		{
			name: "truncated frame at EOF",
			in:   `N000008[{"A":`,
			want: []string{`N000008[{"A":`},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := scanAll(t, tt.in)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Fatalf("tokens = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeStatus_MergesGroups(t *testing.T) {
	t.Parallel()

	frame := `N000042[{"SYST":{"CFG":{"TU":"C","NC":"00"},"AVM":{"HG":"Y"}}},{"HGOM":{"OOP":{"ST":"N"}}},{"SYST":{"CFG":{"NC":"01"}}}]`
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)

	snap, err := decodeStatus([]byte(frame), now)
	if err != nil {
		t.Fatalf("decodeStatus error: %v", err)
	}
	if snap.Sequence != 42 {
		t.Fatalf("Sequence = %d, want 42", snap.Sequence)
	}
	if snap.Fingerprint != frame {
		t.Fatalf("Fingerprint = %q, want raw frame", snap.Fingerprint)
	}
	if !snap.ObservedAt.Equal(now) {
		t.Fatalf("ObservedAt = %v, want %v", snap.ObservedAt, now)
	}

	checks := map[string]any{
		"SYST.CFG.TU": "C",
		"SYST.CFG.NC": "01",
		"SYST.AVM.HG": "Y",
		"HGOM.OOP.ST": "N",
	}
	for path, want := range checks {
		got, ok := snap.Tree.Lookup(schema.MustParsePath(path))
		if !ok {
			t.Fatalf("%s missing from tree", path)
		}
		if got != want {
			t.Fatalf("%s = %v, want %v", path, got, want)
		}
	}
	if _, ok := snap.Tree.Lookup(schema.MustParsePath("SYST.CFG.XX")); ok {
		t.Fatalf("unexpected leaf SYST.CFG.XX")
	}
}

func TestDecodeStatus_SingleObject(t *testing.T) {
	t.Parallel()

	snap, err := decodeStatus([]byte(`N000001{"ECOM":{"GSO":{"SP":"24"}}}`), time.Now())
	if err != nil {
		t.Fatalf("decodeStatus error: %v", err)
	}
	if v, _ := snap.Tree.Lookup(schema.MustParsePath("ECOM.GSO.SP")); v != "24" {
		t.Fatalf("ECOM.GSO.SP = %v, want 24", v)
	}
}

func TestDecodeStatus_Malformed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"short":              "N0001",
		"non-digit seq":      "N00a001[]",
		"no payload":         "N000001",
		"bad json":           "N000001[{",
		"group not object":   `N000001[{"SYST":3}]`,
		"section not object": `N000001[{"SYST":{"CFG":"x"}}]`,
		"scalar payload":     "N000001 42",
	}
	for name, in := range cases {
		if _, err := decodeStatus([]byte(in), time.Now()); !errors.Is(err, ErrMalformedFrame) {
			t.Fatalf("%s: err = %v, want ErrMalformedFrame", name, err)
		}
	}
}

func TestEncodeFrame(t *testing.T) {
	t.Parallel()

	if got := string(EncodeFrame(8, `{"SYST":{"OSS":{"MD":"H"}}}`)); got != `N000008{"SYST":{"OSS":{"MD":"H"}}}` {
		t.Fatalf("EncodeFrame = %q", got)
	}
	if got := string(EncodeFrame(0, "{}")); got != "N000000{}" {
		t.Fatalf("EncodeFrame = %q", got)
	}
}

func TestNextSequence_Wraps(t *testing.T) {
	t.Parallel()

	tests := []struct{ last, want int }{
		{-1, 0},
		{0, 1},
		{254, 255},
		{255, 0},
	}
	for _, tt := range tests {
		if got := nextSequence(tt.last); got != tt.want {
			t.Fatalf("nextSequence(%d) = %d, want %d", tt.last, got, tt.want)
		}
	}
}

func TestStore_PublishDetectsChange(t *testing.T) {
	t.Parallel()

	var s Store
	if s.Current() != nil {
		t.Fatalf("new store should be empty")
	}
	a := &Snapshot{Fingerprint: "N000001[]", Sequence: 1}
	a2 := &Snapshot{Fingerprint: "N000001[]", Sequence: 1}
	b := &Snapshot{Fingerprint: "N000002[]", Sequence: 2}

	if !s.Publish(a) {
		t.Fatalf("first publish should report a change")
	}
	if s.Publish(a2) {
		t.Fatalf("identical fingerprint should not report a change")
	}
	if s.Current() != a {
		t.Fatalf("identical frame must not replace the snapshot")
	}
	if !s.Publish(b) {
		t.Fatalf("different fingerprint should report a change")
	}
	if s.Current() != b {
		t.Fatalf("Current = %+v, want b", s.Current())
	}
	s.Clear()
	if s.Current() != nil {
		t.Fatalf("Clear should drop the snapshot")
	}
}
