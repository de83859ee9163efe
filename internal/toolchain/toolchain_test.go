package toolchain

import "testing"

func TestNewRejectsEmptyConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New(Config{}) = nil error, want error for missing compiler")
	}
}

func TestNewDefaultsToGNULike(t *testing.T) {
	tc, err := New(Config{CC: "gcc", CXX: "g++"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := tc.(*gnuToolchain); !ok {
		t.Errorf("New() with no Family = %T, want *gnuToolchain", tc)
	}
}

func TestNewSelectsMSVCLike(t *testing.T) {
	tc, err := New(Config{Family: MSVCLike, CC: "cl.exe"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := tc.(*msvcToolchain); !ok {
		t.Errorf("New() with MSVCLike = %T, want *msvcToolchain", tc)
	}
}

func TestNewRejectsUnknownFamily(t *testing.T) {
	if _, err := New(Config{Family: "bogus", CC: "gcc"}); err == nil {
		t.Fatal("New() with unknown family = nil error, want error")
	}
}

func TestSourceIsCxx(t *testing.T) {
	cases := map[string]bool{
		"widget.cc":  true,
		"widget.cpp": true,
		"widget.cxx": true,
		"widget.C":   true,
		"widget.c":   false,
		"widget.h":   false,
	}
	for src, want := range cases {
		if got := sourceIsCxx(src); got != want {
			t.Errorf("sourceIsCxx(%q) = %v, want %v", src, got, want)
		}
	}
}
