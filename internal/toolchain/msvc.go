package toolchain

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cppack/cppack"
)

// msvcToolchain drives cl.exe/lib.exe/link.exe via their /I, /c /Fo,
// /showIncludes command shape.
type msvcToolchain struct {
	cc, cxx, archiver, linker string
	extraFlags                []string
	jobs                      int
}

func newMSVCToolchain(cfg Config, jobs int) *msvcToolchain {
	cxx := cfg.CXX
	if cxx == "" {
		cxx = "cl.exe"
	}
	cc := cfg.CC
	if cc == "" {
		cc = cxx
	}
	archiver := cfg.Archiver
	if archiver == "" {
		archiver = "lib.exe"
	}
	linker := cfg.Linker
	if linker == "" {
		linker = "link.exe"
	}
	return &msvcToolchain{cc: cc, cxx: cxx, archiver: archiver, linker: linker, extraFlags: cfg.ExtraFlags, jobs: jobs}
}

func (m *msvcToolchain) Jobs() int { return m.jobs }

func (m *msvcToolchain) compiler(src string) string {
	if sourceIsCxx(src) {
		return m.cxx
	}
	return m.cc
}

func (m *msvcToolchain) compileArgs(src, objectPath string, includeDirs []string) []string {
	args := []string{"/nologo", "/c", "/showIncludes", src, "/Fo" + objectPath}
	for _, dir := range includeDirs {
		args = append(args, "/I"+dir)
	}
	args = append(args, m.extraFlags...)
	return args
}

func (m *msvcToolchain) CompileCommand(src string, includeDirs []string) string {
	return m.compiler(src) + " " + strings.Join(m.compileArgs(src, "<object>", includeDirs), " ")
}

// showIncludesPrefix is the line prefix cl.exe emits for every header it
// opens when run with /showIncludes, in the build's default (English)
// locale.
const showIncludesPrefix = "Note: including file:"

func (m *msvcToolchain) Compile(ctx context.Context, src, objectPath string, includeDirs []string) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(objectPath), 0o755); err != nil {
		return nil, err
	}
	args := m.compileArgs(src, objectPath, includeDirs)
	cmd := exec.CommandContext(ctx, m.compiler(src), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s: %w\n%s", cmd.Args, err, out)
	}
	return parseShowIncludes(out), nil
}

// parseShowIncludes extracts header paths from cl.exe's /showIncludes
// output, which is interleaved with normal compiler diagnostics on stdout.
func parseShowIncludes(out []byte) []string {
	var headers []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if rest, ok := strings.CutPrefix(line, showIncludesPrefix); ok {
			headers = append(headers, strings.TrimSpace(rest))
		}
	}
	return headers
}

func (m *msvcToolchain) CheckHeader(ctx context.Context, header string, includeDirs []string) error {
	dir, err := os.MkdirTemp("", "cppack-headercheck")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "check.cc")
	content := fmt.Sprintf("#include \"%s\"\n", header)
	if err := os.WriteFile(src, []byte(content), 0o644); err != nil {
		return err
	}

	obj := filepath.Join(dir, "check.obj")
	args := m.compileArgs(src, obj, includeDirs)
	cmd := exec.CommandContext(ctx, m.cxx, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w\n%s", cmd.Args, err, out)
	}
	return nil
}

func (m *msvcToolchain) Archive(ctx context.Context, objects []string, archivePath string) error {
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return err
	}
	args := append([]string{"/nologo", "/out:" + archivePath}, objects...)
	cmd := exec.CommandContext(ctx, m.archiver, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w\n%s", cmd.Args, err, out)
	}
	return nil
}

func (m *msvcToolchain) Link(ctx context.Context, objects, archives []string, binaryPath string) error {
	if err := os.MkdirAll(filepath.Dir(binaryPath), 0o755); err != nil {
		return err
	}
	args := []string{"/nologo", "/out:" + binaryPath}
	args = append(args, objects...)
	args = append(args, archives...)
	args = append(args, m.extraFlags...)
	cmd := exec.CommandContext(ctx, m.linker, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w\n%s", cmd.Args, err, out)
	}
	return nil
}

func (m *msvcToolchain) RunTest(ctx context.Context, binaryPath string) error {
	cmd := exec.CommandContext(ctx, binaryPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return cppack.Errorf(cppack.MarkerBuildTestsFailed, "%s: %v\n%s", binaryPath, err, out)
	}
	return nil
}
