package buildgraph

import (
	"container/heap"
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/cppack/cppack"
)

// nodeHeap is a max-heap of ready nodes ordered by downstream count (the
// critical-path priority), ties broken by the stable node id so scheduling
// is deterministic across runs.
type nodeHeap struct {
	nodes      []*Node
	downstream map[int64]int
}

func (h *nodeHeap) Len() int { return len(h.nodes) }
func (h *nodeHeap) Less(i, j int) bool {
	a, b := h.nodes[i], h.nodes[j]
	pa, pb := h.downstream[a.id], h.downstream[b.id]
	if pa != pb {
		return pa > pb
	}
	return a.id < b.id
}
func (h *nodeHeap) Swap(i, j int)      { h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i] }
func (h *nodeHeap) Push(x interface{}) { h.nodes = append(h.nodes, x.(*Node)) }
func (h *nodeHeap) Pop() interface{} {
	old := h.nodes
	n := len(old)
	item := old[n-1]
	h.nodes = old[:n-1]
	return item
}

// NodeResult is one node's outcome from a Scheduler run.
type NodeResult struct {
	Node    *Node
	Err     error
	Skipped bool // a dependency failed, so this node never ran
}

// RunResult is a Scheduler run's complete outcome.
type RunResult struct {
	Results   map[int64]NodeResult
	Succeeded int
	Failed    int
	Skipped   int
}

// Scheduler executes a Graph's nodes with a bounded worker pool.
type Scheduler struct {
	gr        *Graph
	tc        Toolchain
	db        *DepDB
	keyMode   KeyMode
	workers   int
	keepGoing bool
	log       *log.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	ready    nodeHeap
	enqueued map[int64]bool
	done     map[int64]NodeResult
	failed   bool
	canceled bool

	statusMu   sync.Mutex
	status     []string
	lastStatus time.Time
}

// NewScheduler builds a Scheduler for gr. workers <= 0 means CPU-count + 2,
// matching the toolchain's own default when it declines to express a
// preference.
func NewScheduler(gr *Graph, tc Toolchain, db *DepDB, keyMode KeyMode, workers int, keepGoing bool, logger *log.Logger) *Scheduler {
	if workers <= 0 {
		workers = tc.Jobs()
	}
	if workers <= 0 {
		workers = runtime.NumCPU() + 2
	}
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	s := &Scheduler{
		gr:        gr,
		tc:        tc,
		db:        db,
		keyMode:   keyMode,
		workers:   workers,
		keepGoing: keepGoing,
		log:       logger,
		ready:     nodeHeap{downstream: gr.downstream},
		enqueued:  make(map[int64]bool),
		done:      make(map[int64]NodeResult),
		status:    make([]string, workers+1),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

var stdoutIsTerminal = isatty.IsTerminal(os.Stdout.Fd())

// Run executes every node in gr, fail-fast by default: the first node
// failure stops new dispatch (in-flight work still completes) unless
// keepGoing was set, in which case the scheduler keeps going until no
// ready node remains.
func (s *Scheduler) Run(ctx context.Context) (*RunResult, error) {
	all := s.gr.Nodes()
	total := len(all)

	s.mu.Lock()
	for _, n := range all {
		if len(s.gr.Dependencies(n)) == 0 {
			s.enqueueLocked(n)
		}
	}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.canceled = true
		s.cond.Broadcast()
		s.mu.Unlock()
	}()

	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		slot := i + 1
		eg.Go(func() error {
			for {
				n, ok := s.nextLocked(total)
				if !ok {
					return nil
				}
				s.updateStatus(slot, fmt.Sprintf("building %s: %s", n.Lib.Library, n.Kind))
				err := s.runNode(ctx, n)
				s.updateStatus(slot, "idle")
				s.recordResult(n, err, total)
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return s.summarize(), nil
}

// nextLocked blocks until a ready node is available, the run is complete,
// or cancellation means no more work should start. Once fail-fast has
// tripped, the ready heap is drained immediately (see recordResult and
// abandonLocked),
// so a worker only ever finds it non-empty when dispatch is still allowed.
func (s *Scheduler) nextLocked(total int) (*Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.ready.Len() > 0 && !s.canceled {
			n := heap.Pop(&s.ready).(*Node)
			return n, true
		}
		if len(s.done) == total || s.canceled {
			return nil, false
		}
		s.cond.Wait()
	}
}

// enqueueLocked adds n to the ready heap if it has not already been
// enqueued. Caller must hold s.mu.
func (s *Scheduler) enqueueLocked(n *Node) {
	if s.enqueued[n.id] {
		return
	}
	s.enqueued[n.id] = true
	heap.Push(&s.ready, n)
}

// enqueueOrAbandonLocked enqueues n unless fail-fast has already tripped,
// in which case n is immediately recorded as skipped rather than made
// ready: once the first failure stops new dispatch, work that only just
// became able to build is no different from work that was already
// waiting. Caller must hold s.mu.
func (s *Scheduler) enqueueOrAbandonLocked(n *Node) {
	if s.failed && !s.keepGoing {
		s.abandonLocked(n)
		return
	}
	s.enqueueLocked(n)
}

func (s *Scheduler) abandonLocked(n *Node) {
	if _, already := s.done[n.id]; already {
		return
	}
	s.done[n.id] = NodeResult{Node: n, Skipped: true,
		Err: cppack.Errorf(cppack.MarkerCompileFailed, "build stopped dispatching new work after an earlier failure")}
}

// recordResult stores n's outcome, propagates failure to dependents that
// can no longer build, and wakes any worker waiting for new ready work.
func (s *Scheduler) recordResult(n *Node, err error, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.done[n.id] = NodeResult{Node: n, Err: err}
	if err != nil {
		s.failed = true
		s.log.Printf("%s %s failed: %v", n.Kind, n.Source, err)
		s.skipDependentsLocked(n)
	} else {
		for _, dep := range s.gr.Dependents(n) {
			if s.canBuildLocked(dep) {
				s.enqueueOrAbandonLocked(dep)
			}
		}
	}
	if s.failed && !s.keepGoing {
		// Fail-fast just tripped (or tripped earlier, via another
		// worker): anything still sitting in the ready heap was never
		// actually dispatched, so it is abandoned rather than left for a
		// worker to pick up.
		for s.ready.Len() > 0 {
			s.abandonLocked(heap.Pop(&s.ready).(*Node))
		}
	}
	s.cond.Broadcast()
}

// canBuildLocked reports whether every dependency of n has completed
// successfully. Caller must hold s.mu.
func (s *Scheduler) canBuildLocked(n *Node) bool {
	for _, dep := range s.gr.Dependencies(n) {
		r, ok := s.done[dep.id]
		if !ok || r.Err != nil {
			return false
		}
	}
	return true
}

// skipDependentsLocked marks every transitive dependent of a failed node
// as Skipped, so a keep-going run does not dispatch work that can never
// succeed. Caller must hold s.mu.
func (s *Scheduler) skipDependentsLocked(n *Node) {
	for _, dep := range s.gr.Dependents(n) {
		if _, already := s.done[dep.id]; already {
			continue
		}
		s.done[dep.id] = NodeResult{Node: dep, Skipped: true,
			Err: cppack.Errorf(cppack.MarkerCompileFailed, "dependency %s did not build", n.Source)}
		s.skipDependentsLocked(dep)
	}
}

func (s *Scheduler) summarize() *RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := &RunResult{Results: make(map[int64]NodeResult, len(s.done))}
	for id, r := range s.done {
		out.Results[id] = r
		switch {
		case r.Skipped:
			out.Skipped++
		case r.Err != nil:
			out.Failed++
		default:
			out.Succeeded++
		}
	}
	return out
}

// runNode dispatches n to the toolchain, consulting and updating the
// dependency database for compile nodes so later runs can skip work whose
// inputs have not changed.
func (s *Scheduler) runNode(ctx context.Context, n *Node) error {
	switch n.Kind {
	case KindCompile:
		return s.runCompile(ctx, n)
	case KindHeaderCheck:
		if err := s.tc.CheckHeader(ctx, n.Source, n.IncludeDirs); err != nil {
			return cppack.Wrap(cppack.MarkerSyntaxCheckFailed, err, "header isolation check: "+n.Source)
		}
		return nil
	case KindArchive:
		var objects []string
		for _, dep := range s.gr.Dependencies(n) {
			if dep.Kind == KindCompile {
				objects = append(objects, dep.Object)
			}
		}
		if err := s.tc.Archive(ctx, objects, n.Object); err != nil {
			return cppack.Wrap(cppack.MarkerCompileFailed, err, "archive "+n.Object)
		}
		return nil
	case KindLink:
		var objects, archives []string
		for _, dep := range s.gr.Dependencies(n) {
			switch dep.Kind {
			case KindCompile:
				objects = append(objects, dep.Object)
			case KindArchive:
				archives = append(archives, dep.Object)
			}
		}
		if err := s.tc.Link(ctx, objects, archives, n.Object); err != nil {
			return cppack.Wrap(cppack.MarkerLinkFailed, err, "link "+n.Object)
		}
		return nil
	case KindTestRun:
		if err := s.tc.RunTest(ctx, n.Object); err != nil {
			return cppack.Wrap(cppack.MarkerBuildTestsFailed, err, "test "+n.TestName)
		}
		return nil
	default:
		return fmt.Errorf("buildgraph: unknown node kind %v", n.Kind)
	}
}

func (s *Scheduler) runCompile(ctx context.Context, n *Node) error {
	key := NodeKey(string(n.Lib.Package), n.Lib.Library, n.Source)
	n.Command = s.tc.CompileCommand(n.Source, n.IncludeDirs)

	prior, hasPrior := s.db.Get(key)
	if hasPrior && !prior.Failed && outputExists(n.Object) {
		checkKey, err := computeCacheKey(s.keyMode, n.Command, n.Source, prior.Headers)
		if err == nil && checkKey == prior.CacheKey {
			return nil // up to date
		}
	}

	headers, compileErr := s.tc.Compile(ctx, n.Source, n.Object, n.IncludeDirs)
	if compileErr != nil {
		rec := DepRecord{Failed: true}
		if hasPrior {
			rec.CacheKey = prior.CacheKey
			rec.Headers = prior.Headers
		}
		if err := s.db.Put(key, rec); err != nil {
			s.log.Printf("dependency database write failed for %s: %v", n.Source, err)
		}
		return cppack.Wrap(cppack.MarkerCompileFailed, compileErr, "compile "+n.Source)
	}

	newKey, err := computeCacheKey(s.keyMode, n.Command, n.Source, headers)
	if err != nil {
		return cppack.Wrap(cppack.MarkerCompileFailed, err, "hash dependency state for "+n.Source)
	}
	if err := s.db.Put(key, DepRecord{CacheKey: newKey, Headers: headers}); err != nil {
		s.log.Printf("dependency database write failed for %s: %v", n.Source, err)
	}
	return nil
}

func outputExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s *Scheduler) updateStatus(slot int, text string) {
	if !stdoutIsTerminal {
		return
	}
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	if diff := len(s.status[slot]) - len(text); diff > 0 {
		text += strings.Repeat(" ", diff)
	}
	s.status[slot] = text
	if time.Since(s.lastStatus) < 100*time.Millisecond {
		return
	}
	s.lastStatus = time.Now()
	for _, line := range s.status {
		fmt.Println(line)
	}
	fmt.Printf("\033[%dA", len(s.status))
}
