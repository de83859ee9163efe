package toolchain

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMSVCCompileCommandIncludesFlags(t *testing.T) {
	tc := newMSVCToolchain(Config{CC: "cl.exe", CXX: "cl.exe"}, 4)

	got := tc.CompileCommand(`widget.cc`, []string{`C:\inc\a`})
	for _, want := range []string{"cl.exe", "/showIncludes", "widget.cc", `/IC:\inc\a`} {
		if !strings.Contains(got, want) {
			t.Errorf("CompileCommand() = %q, want substring %q", got, want)
		}
	}
}

func TestMSVCDefaultsToolNames(t *testing.T) {
	tc := newMSVCToolchain(Config{}, 4)
	if tc.cxx != "cl.exe" || tc.cc != "cl.exe" {
		t.Errorf("cc/cxx = %q/%q, want cl.exe defaults", tc.cc, tc.cxx)
	}
	if tc.archiver != "lib.exe" {
		t.Errorf("archiver = %q, want lib.exe", tc.archiver)
	}
	if tc.linker != "link.exe" {
		t.Errorf("linker = %q, want link.exe", tc.linker)
	}
}

func TestParseShowIncludes(t *testing.T) {
	out := "widget.cc\n" +
		"Note: including file: C:\\inc\\widget.h\n" +
		"Note: including file:  C:\\inc\\common.h\n" +
		"widget.cc(3): warning C4101: unreferenced local\n"

	got := parseShowIncludes([]byte(out))
	want := []string{`C:\inc\widget.h`, `C:\inc\common.h`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseShowIncludes() mismatch (-want +got):\n%s", diff)
	}
}
