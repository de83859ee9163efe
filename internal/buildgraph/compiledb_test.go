package buildgraph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteCompileCommandsCoversEveryCompileNode(t *testing.T) {
	p, store := buildTestPlan(t)
	work := filepath.Join(store, "_work")

	gr, err := Build(p, Options{WorkDir: work})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := os.MkdirAll(work, 0o755); err != nil {
		t.Fatal(err)
	}

	dbPath := filepath.Join(work, "compile_commands.json")
	if err := WriteCompileCommands(dbPath, gr, newFakeToolchain()); err != nil {
		t.Fatalf("WriteCompileCommands: %v", err)
	}

	raw, err := os.ReadFile(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	var entries []struct {
		Directory string `json:"directory"`
		Command   string `json:"command"`
		File      string `json:"file"`
		Output    string `json:"output"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("compile_commands.json is not valid JSON: %v", err)
	}

	compiles := 0
	for _, n := range gr.Nodes() {
		if n.Kind == KindCompile {
			compiles++
		}
	}
	if len(entries) != compiles {
		t.Fatalf("entries = %d, want one per compile node (%d)", len(entries), compiles)
	}
	for _, e := range entries {
		if e.Directory == "" || e.File == "" || e.Output == "" {
			t.Errorf("entry %+v has empty fields", e)
		}
		if !strings.HasPrefix(e.Command, "fakecc ") || !strings.Contains(e.Command, e.File) {
			t.Errorf("entry command %q does not name its file %q", e.Command, e.File)
		}
		if filepath.Ext(e.File) == ".h" {
			t.Errorf("header %q leaked into the compilation database", e.File)
		}
	}
}
