package manifest

import (
	"testing"

	"github.com/cppack/cppack"
	"github.com/google/go-cmp/cmp"
)

func TestParseJSON(t *testing.T) {
	data := []byte(`{
		"name": "widgets",
		"version": "1.2.0",
		"license": "MIT",
		"dependencies": ["fmtlib@9.1.0"],
		"libraries": [
			{
				"name": "widgets",
				"using": ["fmtlib", {"lib": "internal-util", "for": "app"}],
				"dependencies": ["fmtlib@9.1.0"]
			},
			{"name": "internal-util"}
		]
	}`)
	m, err := Parse(data, "cppack.json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Name != "widgets" || m.Version.String() != "1.2.0" || m.PkgRev != 1 {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	root, ok := m.RootLibrary()
	if !ok {
		t.Fatal("RootLibrary not found")
	}
	if len(root.Uses) != 2 || root.Uses[1].Lib != "internal-util" || root.Uses[1].For != ForApp {
		t.Errorf("unexpected uses: %+v", root.Uses)
	}
}

func TestParseYAMLAndTOMLAgree(t *testing.T) {
	yamlData := []byte("name: widgets\nversion: 1.0.0\ndependencies:\n  - fmtlib@9.1.0\nlib:\n  using:\n    - fmtlib\n")
	tomlData := []byte("name = \"widgets\"\nversion = \"1.0.0\"\ndependencies = [\"fmtlib@9.1.0\"]\n\n[lib]\nusing = [\"fmtlib\"]\n")

	my, err := Parse(yamlData, "cppack.yaml")
	if err != nil {
		t.Fatalf("Parse(yaml): %v", err)
	}
	mt, err := Parse(tomlData, "cppack.toml")
	if err != nil {
		t.Fatalf("Parse(toml): %v", err)
	}
	if my.Name != mt.Name || !my.Version.Equal(mt.Version) {
		t.Fatalf("yaml/toml manifests disagree: %+v vs %+v", my, mt)
	}
	ry, _ := my.RootLibrary()
	rt, _ := mt.RootLibrary()
	if diff := cmp.Diff(ry.Uses, rt.Uses); diff != "" {
		t.Errorf("uses differ between yaml and toml (-yaml +toml):\n%s", diff)
	}
}

func TestParseSingleLibraryShorthandDefaultsName(t *testing.T) {
	data := []byte(`{"name": "onelib", "version": "0.1.0"}`)
	m, err := Parse(data, "cppack.json")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Libraries) != 1 || m.Libraries[0].Name != "onelib" {
		t.Fatalf("expected implicit single library named onelib, got %+v", m.Libraries)
	}
}

func TestParseRejectsMissingFields(t *testing.T) {
	for _, test := range []struct {
		desc string
		data string
	}{
		{"no name", `{"version": "1.0.0"}`},
		{"no version", `{"name": "widgets"}`},
		{"bad pkg-rev", `{"name": "widgets", "version": "1.0.0", "pkg-rev": 0}`},
		{"bad license", `{"name": "widgets", "version": "1.0.0", "license": "("}`},
	} {
		t.Run(test.desc, func(t *testing.T) {
			if _, err := Parse([]byte(test.data), "cppack.json"); err == nil {
				t.Errorf("Parse(%s): want error, got nil", test.desc)
			}
		})
	}
}

func TestValidateRejectsSelfUse(t *testing.T) {
	data := []byte(`{
		"name": "widgets",
		"version": "1.0.0",
		"libraries": [{"name": "widgets", "using": ["widgets"]}]
	}`)
	_, err := Parse(data, "cppack.json")
	if err == nil {
		t.Fatal("want error for self-using library, got nil")
	}
	if !cppack.Is(err, cppack.MarkerLibraryCycle) {
		t.Errorf("want MarkerLibraryCycle, got %v", err)
	}
}

func TestValidateRejectsSelfDependency(t *testing.T) {
	data := []byte(`{
		"name": "widgets",
		"version": "1.0.0",
		"dependencies": ["widgets^1.0.0"],
		"libraries": [{"name": "widgets"}]
	}`)
	_, err := Parse(data, "cppack.json")
	if err == nil {
		t.Fatal("want error for a package depending on itself, got nil")
	}
	if !cppack.Is(err, cppack.MarkerInvalidManifest) {
		t.Errorf("want MarkerInvalidManifest, got %v", err)
	}
}

func TestValidateRejectsLibraryCycle(t *testing.T) {
	data := []byte(`{
		"name": "widgets",
		"version": "1.0.0",
		"libraries": [
			{"name": "a", "using": ["b"]},
			{"name": "b", "using": ["a"]}
		]
	}`)
	_, err := Parse(data, "cppack.json")
	if err == nil {
		t.Fatal("want error for library cycle, got nil")
	}
	if !cppack.Is(err, cppack.MarkerLibraryCycle) {
		t.Errorf("want MarkerLibraryCycle, got %v", err)
	}
}

func TestValidateRejectsUnresolvedUse(t *testing.T) {
	data := []byte(`{
		"name": "widgets",
		"version": "1.0.0",
		"libraries": [{"name": "widgets", "using": ["nonexistent"]}]
	}`)
	if _, err := Parse(data, "cppack.json"); err == nil {
		t.Fatal("want error for unresolved using entry, got nil")
	}
}

func TestUseAcceptsDeclaredDependencyName(t *testing.T) {
	data := []byte(`{
		"name": "widgets",
		"version": "1.0.0",
		"dependencies": ["fmtlib@9.1.0"],
		"libraries": [{"name": "widgets", "using": ["fmtlib"]}]
	}`)
	if _, err := Parse(data, "cppack.json"); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestValidateSPDX(t *testing.T) {
	for _, test := range []struct {
		expr    string
		wantErr bool
	}{
		{"MIT", false},
		{"Apache-2.0", false},
		{"MIT OR Apache-2.0", false},
		{"(MIT OR Apache-2.0) AND BSD-3-Clause", false},
		{"GPL-2.0-only WITH Classpath-exception-2.0", false},
		{"LicenseRef-proprietary", false},
		{"", true},
		{"MIT OR", true},
		{"AND MIT", true},
		{"(MIT OR Apache-2.0", true},
		{"Made-Up-License-9.9", true},
	} {
		err := ValidateSPDX(test.expr)
		if (err != nil) != test.wantErr {
			t.Errorf("ValidateSPDX(%q) = %v, wantErr %v", test.expr, err, test.wantErr)
		}
		if err != nil && !cppack.Is(err, cppack.MarkerInvalidSpdx) {
			t.Errorf("ValidateSPDX(%q) error marker = %v, want MarkerInvalidSpdx", test.expr, err)
		}
	}
}
