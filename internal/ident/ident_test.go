package ident

import (
	"testing"
)

func TestParseNameRoundTrip(t *testing.T) {
	for _, s := range []string{"foo", "foo-bar", "foo.bar_baz", "a", "libfoo2"} {
		n, err := ParseName(s)
		if err != nil {
			t.Fatalf("ParseName(%q): %v", s, err)
		}
		if n.String() != s {
			t.Errorf("ParseName(%q).String() = %q, want %q", s, n.String(), s)
		}
	}
}

func TestParseNameInvalid(t *testing.T) {
	for _, s := range []string{"", "Foo", "-foo", "foo bar", "foo/bar", string(make([]byte, 65))} {
		if _, err := ParseName(s); err == nil {
			t.Errorf("ParseName(%q): want error, got nil", s)
		}
	}
}

func TestDepExprParseFormatRoundTrip(t *testing.T) {
	for _, s := range []string{
		"foo@1.2.3",
		"foo^1.2.3",
		"foo~1.2.3",
		"foo+1.2.3",
		"foo=1.2.3",
		"foo 1.2.3",
		"foo@1.2.3 using bar,baz",
	} {
		d, err := ParseDepExpr(s)
		if err != nil {
			t.Fatalf("ParseDepExpr(%q): %v", s, err)
		}
		if got := d.String(); got != s {
			t.Errorf("ParseDepExpr(%q).String() = %q, want %q", s, got, s)
		}
		// parse(format(E)) == E
		d2, err := ParseDepExpr(d.String())
		if err != nil {
			t.Fatalf("re-parse %q: %v", d.String(), err)
		}
		if d2.Name != d.Name || d2.Op != d.Op || !d2.Version.Equal(d.Version) {
			t.Errorf("round trip mismatch for %q", s)
		}
	}
}

func TestDepExprIntervals(t *testing.T) {
	cases := []struct {
		expr    string
		in, out string // versions expected inside/outside the interval
	}{
		{"foo@1.2.3", "1.2.3", "1.2.4"},
		{"foo~1.2.3", "1.2.9", "1.3.0"},
		{"foo^1.2.3", "1.9.0", "2.0.0"},
		{"foo+1.2.3", "9.9.9", "1.2.2"},
	}
	for _, c := range cases {
		d, err := ParseDepExpr(c.expr)
		if err != nil {
			t.Fatalf("ParseDepExpr(%q): %v", c.expr, err)
		}
		in, _ := ParseVersion(c.in)
		out, _ := ParseVersion(c.out)
		if !d.Interval.Contains(in) {
			t.Errorf("%s: expected to contain %s", c.expr, c.in)
		}
		if d.Interval.Contains(out) {
			t.Errorf("%s: expected to exclude %s", c.expr, c.out)
		}
	}
}

func TestDepExprExact(t *testing.T) {
	d, err := ParseDepExpr("foo=1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	v123, _ := ParseVersion("1.2.3")
	v124, _ := ParseVersion("1.2.4")
	if !d.Interval.Contains(v123) {
		t.Error("exact interval should contain 1.2.3")
	}
	if d.Interval.Contains(v124) {
		t.Error("exact interval should not contain 1.2.4")
	}
}

func TestDepExprRequiredUses(t *testing.T) {
	d, err := ParseDepExpr("foo@1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := d.RequiredUses(), []string{"foo"}; len(got) != 1 || got[0] != want[0] {
		t.Errorf("RequiredUses() = %v, want %v", got, want)
	}

	d2, err := ParseDepExpr("foo@1.0.0 using bar,baz")
	if err != nil {
		t.Fatal(err)
	}
	if got := d2.RequiredUses(); len(got) != 2 || got[0] != "bar" || got[1] != "baz" {
		t.Errorf("RequiredUses() = %v", got)
	}
}

func TestPkgIDRoundTrip(t *testing.T) {
	v, _ := ParseVersion("1.2.3")
	id := PkgID{Name: "foo", Version: v, PkgRev: 2}
	s := id.String()
	if want := "foo@1.2.3~2"; s != want {
		t.Fatalf("String() = %q, want %q", s, want)
	}
	got, err := ParsePkgID(s)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != id.Name || !got.Version.Equal(id.Version) || got.PkgRev != id.PkgRev {
		t.Errorf("ParsePkgID round trip mismatch: %+v", got)
	}
}

func TestPkgIDLess(t *testing.T) {
	v1, _ := ParseVersion("1.0.0")
	v2, _ := ParseVersion("1.2.3")
	a := PkgID{Name: "foo", Version: v2, PkgRev: 1}
	b := PkgID{Name: "foo", Version: v1, PkgRev: 1}
	if !a.Less(b) {
		t.Error("higher version should sort first")
	}
	c := PkgID{Name: "foo", Version: v2, PkgRev: 2}
	if !c.Less(a) {
		t.Error("higher pkg-rev should sort first within same version")
	}
}

func TestIntervalSet(t *testing.T) {
	v, _ := ParseVersion("1.0.0")
	v2, _ := ParseVersion("2.0.0")
	v3, _ := ParseVersion("3.0.0")
	a := Set{{Low: v, High: v2}}
	b := Set{{Low: v2, High: v3}}
	if !a.Intersect(b).Empty() {
		t.Error("adjacent half-open intervals should not overlap")
	}

	v15, _ := ParseVersion("1.5.0")
	c := Set{{Low: v15, High: v3}}
	inter := a.Intersect(c)
	if inter.Empty() {
		t.Fatal("expected overlap")
	}
	if !inter.Contains(v15) {
		t.Error("expected intersection to contain 1.5.0")
	}
}
