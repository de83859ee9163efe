package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cppack/cppack"
)

// gnuToolchain drives gcc/clang and ar via their -I/-c -o/-MMD -MF command
// shape.
type gnuToolchain struct {
	cc, cxx, archiver, linker string
	extraFlags                []string
	jobs                      int
}

func newGNUToolchain(cfg Config, jobs int) *gnuToolchain {
	cxx := cfg.CXX
	if cxx == "" {
		cxx = cfg.CC
	}
	cc := cfg.CC
	if cc == "" {
		cc = cxx
	}
	archiver := cfg.Archiver
	if archiver == "" {
		archiver = "ar"
	}
	linker := cfg.Linker
	if linker == "" {
		linker = cxx
	}
	return &gnuToolchain{cc: cc, cxx: cxx, archiver: archiver, linker: linker, extraFlags: cfg.ExtraFlags, jobs: jobs}
}

func (g *gnuToolchain) Jobs() int { return g.jobs }

func (g *gnuToolchain) compiler(src string) string {
	if sourceIsCxx(src) {
		return g.cxx
	}
	return g.cc
}

func (g *gnuToolchain) compileArgs(src, objectPath string, includeDirs []string) []string {
	args := []string{"-c", src, "-o", objectPath}
	for _, dir := range includeDirs {
		args = append(args, "-I"+dir)
	}
	args = append(args, g.extraFlags...)
	return args
}

func (g *gnuToolchain) CompileCommand(src string, includeDirs []string) string {
	return g.compiler(src) + " " + strings.Join(g.compileArgs(src, "<object>", includeDirs), " ")
}

func (g *gnuToolchain) Compile(ctx context.Context, src, objectPath string, includeDirs []string) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(objectPath), 0o755); err != nil {
		return nil, err
	}
	depfile := objectPath + ".d"
	args := g.compileArgs(src, objectPath, includeDirs)
	args = append(args, "-MMD", "-MF", depfile)

	cmd := groupedCommand(ctx, g.compiler(src), args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%s: %w\n%s", cmd.Args, err, out)
	}

	data, err := os.ReadFile(depfile)
	if err != nil {
		// Some toolchains omit the depfile for translation units with no
		// headers at all; that is not itself a compile failure.
		return nil, nil
	}
	headers := parseMakeDepfile(data)
	return dropSelf(headers, src), nil
}

func (g *gnuToolchain) CheckHeader(ctx context.Context, header string, includeDirs []string) error {
	tmp, err := os.CreateTemp("", "cppack-headercheck-*"+filepath.Ext(header))
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	src := tmp.Name() + ".cc"
	if err := os.Rename(tmp.Name(), src); err != nil {
		tmp.Close()
		return err
	}
	defer os.Remove(src)

	content := fmt.Sprintf("#include \"%s\"\n", header)
	if err := os.WriteFile(src, []byte(content), 0o644); err != nil {
		return err
	}

	obj := src + ".o"
	defer os.Remove(obj)
	args := g.compileArgs(src, obj, includeDirs)
	cmd := groupedCommand(ctx, g.cxx, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w\n%s", cmd.Args, err, out)
	}
	return nil
}

func (g *gnuToolchain) Archive(ctx context.Context, objects []string, archivePath string) error {
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return err
	}
	os.Remove(archivePath) // ar rc appends; start from a clean archive
	args := append([]string{"rc", archivePath}, objects...)
	cmd := groupedCommand(ctx, g.archiver, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w\n%s", cmd.Args, err, out)
	}
	return nil
}

func (g *gnuToolchain) Link(ctx context.Context, objects, archives []string, binaryPath string) error {
	if err := os.MkdirAll(filepath.Dir(binaryPath), 0o755); err != nil {
		return err
	}
	args := append([]string{}, objects...)
	args = append(args, archives...)
	args = append(args, "-o", binaryPath)
	args = append(args, g.extraFlags...)
	cmd := groupedCommand(ctx, g.linker, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w\n%s", cmd.Args, err, out)
	}
	return nil
}

func (g *gnuToolchain) RunTest(ctx context.Context, binaryPath string) error {
	cmd := groupedCommand(ctx, binaryPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return cppack.Errorf(cppack.MarkerBuildTestsFailed, "%s: %v\n%s", binaryPath, err, out)
	}
	return nil
}

// dropSelf removes src itself from a dependency list: -MMD reports the
// translation unit as its own first prerequisite, which the dependency
// database has no use recording since it is tracked separately as the
// node's Source.
func dropSelf(headers []string, src string) []string {
	out := headers[:0]
	for _, h := range headers {
		if h != src {
			out = append(out, h)
		}
	}
	return out
}
