package buildgraph

import (
	"encoding/json"
	"os"

	"github.com/google/renameio"
)

// compileCommand is one entry of the standard compilation database format
// clang tooling and editors consume.
type compileCommand struct {
	Directory string `json:"directory"`
	Command   string `json:"command"`
	File      string `json:"file"`
	Output    string `json:"output"`
}

// WriteCompileCommands writes a compile_commands.json at path covering
// every compile node of gr, in stable node-id order. Header-check nodes are
// deliberately left out: their synthesized translation units do not exist
// on disk for a tool to open. The file is published atomically so a
// concurrently running language server never reads a truncated database.
func WriteCompileCommands(path string, gr *Graph, tc Toolchain) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	entries := []compileCommand{}
	for _, n := range gr.Nodes() {
		if n.Kind != KindCompile {
			continue
		}
		entries = append(entries, compileCommand{
			Directory: wd,
			Command:   tc.CompileCommand(n.Source, n.IncludeDirs),
			File:      n.Source,
			Output:    n.Object,
		})
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, append(b, '\n'), 0o644)
}
