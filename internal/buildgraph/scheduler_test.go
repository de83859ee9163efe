package buildgraph

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cppack/cppack"
	"github.com/cppack/cppack/internal/plan"
)

// fakeToolchain never shells out: it simulates compile/archive/link/test by
// writing placeholder output files, so the scheduler's caching and
// dependency-propagation logic can be exercised without a real compiler.
type fakeToolchain struct {
	mu           sync.Mutex
	compileCalls int
	failSources  map[string]bool
	// headers simulates the compiler's dependency output: the header list
	// reported for a given source file.
	headers map[string][]string
}

func newFakeToolchain() *fakeToolchain {
	return &fakeToolchain{
		failSources: make(map[string]bool),
		headers:     make(map[string][]string),
	}
}

func (f *fakeToolchain) Jobs() int { return 2 }

func (f *fakeToolchain) CompileCommand(src string, includeDirs []string) string {
	return "fakecc " + src
}

func (f *fakeToolchain) Compile(ctx context.Context, src, objectPath string, includeDirs []string) ([]string, error) {
	f.mu.Lock()
	f.compileCalls++
	fail := f.failSources[src]
	f.mu.Unlock()
	if fail {
		return nil, cppack.Errorf(cppack.MarkerCompileFailed, "simulated failure compiling %s", src)
	}
	if err := os.MkdirAll(filepath.Dir(objectPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(objectPath, []byte("obj:"+src), 0o644); err != nil {
		return nil, err
	}
	return f.headers[src], nil
}

func (f *fakeToolchain) CheckHeader(ctx context.Context, header string, includeDirs []string) error {
	return nil
}

func (f *fakeToolchain) Archive(ctx context.Context, objects []string, archivePath string) error {
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(archivePath, []byte("archive"), 0o644)
}

func (f *fakeToolchain) Link(ctx context.Context, objects, archives []string, binaryPath string) error {
	if err := os.MkdirAll(filepath.Dir(binaryPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(binaryPath, []byte("binary"), 0o644)
}

func (f *fakeToolchain) RunTest(ctx context.Context, binaryPath string) error { return nil }

func TestSchedulerBuildsGraphSuccessfully(t *testing.T) {
	p, store := buildTestPlan(t)
	gr, err := Build(p, Options{WorkDir: filepath.Join(store, "_work")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	db, err := OpenDepDB(filepath.Join(store, "_depdb"))
	if err != nil {
		t.Fatal(err)
	}
	tc := newFakeToolchain()
	sched := NewScheduler(gr, tc, db, KeyModeFast, 2, false, nil)

	result, err := sched.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 0 || result.Skipped != 0 {
		t.Fatalf("result = %+v, want no failures or skips", result)
	}
	if result.Succeeded != len(gr.Nodes()) {
		t.Fatalf("Succeeded = %d, want %d", result.Succeeded, len(gr.Nodes()))
	}
}

func findCompileSource(gr *Graph, lib, base string) string {
	for _, n := range gr.Nodes() {
		if n.Kind == KindCompile && n.Lib.Library == lib && filepath.Base(n.Source) == base {
			return n.Source
		}
	}
	return ""
}

// TestSchedulerKeepGoingSkipsOnlyTrueDependents uses --keep-going, whose
// semantics (run every node whose dependencies allow it, regardless of
// failures elsewhere) are deterministic regardless of worker-goroutine
// scheduling order: bar shares no edge with foo, so it must always
// complete, while foo's archive and link must always be skipped.
func TestSchedulerKeepGoingSkipsOnlyTrueDependents(t *testing.T) {
	p, store := buildTestPlan(t)
	gr, err := Build(p, Options{WorkDir: filepath.Join(store, "_work")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fooSrc := findCompileSource(gr, "foo", "foo.cpp")
	if fooSrc == "" {
		t.Fatal("could not find foo.cpp compile node")
	}

	db, err := OpenDepDB(filepath.Join(store, "_depdb"))
	if err != nil {
		t.Fatal(err)
	}
	tc := newFakeToolchain()
	tc.failSources[fooSrc] = true
	sched := NewScheduler(gr, tc, db, KeyModeFast, 2, true /* keepGoing */, nil)

	result, err := sched.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed == 0 {
		t.Fatal("want at least one failed node")
	}
	if result.Skipped == 0 {
		t.Fatal("want foo's archive and link nodes skipped")
	}
	for _, n := range gr.Nodes() {
		if n.Lib.Library != "bar" {
			continue
		}
		r := result.Results[n.ID()]
		if r.Err != nil {
			t.Errorf("bar node %s (%s) = %v, want success", n.Kind, n.Source, r.Err)
		}
	}
	if len(result.Results) != len(gr.Nodes()) {
		t.Fatalf("got %d results, want %d (every node accounted for)", len(result.Results), len(gr.Nodes()))
	}
}

// TestSchedulerFailFastTerminates checks the default fail-fast mode
// reaches a clean, total termination (every node either run or abandoned)
// without hanging, regardless of which ready node each worker happens to
// pick up first.
func TestSchedulerFailFastTerminates(t *testing.T) {
	p, store := buildTestPlan(t)
	gr, err := Build(p, Options{WorkDir: filepath.Join(store, "_work")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fooSrc := findCompileSource(gr, "foo", "foo.cpp")
	if fooSrc == "" {
		t.Fatal("could not find foo.cpp compile node")
	}

	db, err := OpenDepDB(filepath.Join(store, "_depdb"))
	if err != nil {
		t.Fatal(err)
	}
	tc := newFakeToolchain()
	tc.failSources[fooSrc] = true
	sched := NewScheduler(gr, tc, db, KeyModeFast, 2, false /* fail-fast */, nil)

	result, err := sched.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed == 0 {
		t.Fatal("want at least one failed node")
	}
	if len(result.Results) != len(gr.Nodes()) {
		t.Fatalf("got %d results, want %d (every node accounted for, none left hanging)", len(result.Results), len(gr.Nodes()))
	}
}

// runOnce builds a fresh graph over p and schedules it against db with its
// own toolchain, returning the toolchain so callers can count compiles.
func runOnce(t *testing.T, p *plan.Plan, work, dbDir string, headers map[string][]string) *fakeToolchain {
	t.Helper()
	gr, err := Build(p, Options{WorkDir: work})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	db, err := OpenDepDB(dbDir)
	if err != nil {
		t.Fatal(err)
	}
	tc := newFakeToolchain()
	for src, hdrs := range headers {
		tc.headers[src] = hdrs
	}
	sched := NewScheduler(gr, tc, db, KeyModeFast, 2, false, nil)
	result, err := sched.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 0 || result.Skipped != 0 {
		t.Fatalf("result = %+v, want clean build", result)
	}
	return tc
}

// A build executed twice in succession with no source changes must invoke
// the compiler zero times the second time.
func TestSchedulerSecondRunSkipsUpToDateCompiles(t *testing.T) {
	p, store := buildTestPlan(t)
	work := filepath.Join(store, "_work")
	dbDir := filepath.Join(store, "_depdb")

	first := runOnce(t, p, work, dbDir, nil)
	if first.compileCalls != 3 {
		t.Fatalf("first run compiled %d units, want 3", first.compileCalls)
	}
	second := runOnce(t, p, work, dbDir, nil)
	if second.compileCalls != 0 {
		t.Errorf("second run compiled %d units, want 0", second.compileCalls)
	}
}

// Touching one header must recompile exactly the compile nodes whose
// recorded header closure contains it.
func TestSchedulerRecompilesOnlyTouchedHeaderClosure(t *testing.T) {
	p, store := buildTestPlan(t)
	work := filepath.Join(store, "_work")
	dbDir := filepath.Join(store, "_depdb")

	barHeader := filepath.Join(store, "bar", "include", "bar.h")
	fooSrc := filepath.Join(store, "foo", "foo.cpp")
	headers := map[string][]string{fooSrc: {barHeader}}

	first := runOnce(t, p, work, dbDir, headers)
	if first.compileCalls != 3 {
		t.Fatalf("first run compiled %d units, want 3", first.compileCalls)
	}

	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(barHeader, future, future); err != nil {
		t.Fatal(err)
	}

	second := runOnce(t, p, work, dbDir, headers)
	if second.compileCalls != 1 {
		t.Errorf("after touching bar.h, second run compiled %d units, want exactly 1 (foo.cpp)", second.compileCalls)
	}
}
