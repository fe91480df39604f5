package affinity

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// Class is one of the fixed logical threads the embedding API mandates
// calls occur on.
type Class int

const (
	// ClassUI carries lifecycle, navigation, and input-injection calls.
	ClassUI Class = iota

	// ClassCompositor carries bridge-side work deferred off the engine's
	// render-delivery callback.
	ClassCompositor
)

func (c Class) String() string {
	switch c {
	case ClassUI:
		return "ui"
	case ClassCompositor:
		return "compositor"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Mode selects how the UI class is driven.
type Mode int

const (
	// Dedicated: the guard owns a pinned goroutine for the UI class.
	Dedicated Mode = iota

	// Cooperative: the host drains the UI queue via PumpStep from its own
	// event loop.
	Cooperative
)

// ErrClosed is returned by Call once the guard has shut down.
var ErrClosed = errors.New("affinity: guard closed")

// Guard schedules tasks onto thread classes and asserts call-site affinity.
type Guard struct {
	ui         *loop
	compositor *loop
	mode       Mode
	closed     atomic.Bool
	wg         sync.WaitGroup
}

// New creates a guard. The UI class is driven per mode; the compositor
// class always gets its own pinned goroutine.
func New(mode Mode) *Guard {
	g := &Guard{
		ui:         newLoop(ClassUI),
		compositor: newLoop(ClassCompositor),
		mode:       mode,
	}

	if mode == Dedicated {
		g.wg.Add(1)
		go g.run(g.ui)
	}
	g.wg.Add(1)
	go g.run(g.compositor)

	return g
}

// Mode reports how the UI class is driven.
func (g *Guard) Mode() Mode {
	return g.mode
}

// Post schedules task on the class and returns immediately. Posts after
// Close are dropped: late-teardown races must not panic or block.
func (g *Guard) Post(class Class, task func()) {
	if g.closed.Load() {
		return
	}
	g.loopFor(class).push(task)
}

// Call schedules task on the class and blocks until it has run, returning
// the task's error. A Call from the goroutine currently bound to the class
// runs inline; anything else would deadlock the loop against itself.
//
// Under the cooperative mode a Call onto the UI class from a foreign
// goroutine completes only when the host pumps.
func (g *Guard) Call(class Class, task func() error) error {
	if g.closed.Load() {
		return ErrClosed
	}

	l := g.loopFor(class)

	// Before the first PumpStep the cooperative UI class is unbound. The
	// host's event-loop goroutine is the one making early lifecycle calls,
	// so the first caller adopts the class; queueing would deadlock against
	// the pump that same goroutine is expected to run.
	if g.mode == Cooperative && l == g.ui && l.gid.Load() == 0 {
		l.gid.Store(curGID())
	}

	if l.gid.Load() == curGID() {
		return task()
	}

	done := make(chan error, 1)
	l.push(func() {
		done <- task()
	})

	select {
	case err := <-done:
		return err
	case <-l.quit:
		return ErrClosed
	}
}

// Assert panics if the calling goroutine is not the one currently bound to
// class. Wrong-thread engine calls are a programming error, never a
// recoverable condition.
func (g *Guard) Assert(class Class) {
	l := g.loopFor(class)
	if bound, cur := l.gid.Load(), curGID(); bound != cur {
		panic(fmt.Sprintf("affinity: call on wrong thread class: need %s (goroutine %d), called from goroutine %d",
			class, bound, cur))
	}
}

// PumpStep drains up to max queued UI tasks on the calling goroutine,
// adopting it as the UI class for this and subsequent asserts. It returns
// the number of tasks run. Only meaningful under the cooperative mode;
// under the dedicated mode it is a no-op.
func (g *Guard) PumpStep(max int) int {
	if g.mode != Cooperative || g.closed.Load() {
		return 0
	}

	g.ui.gid.Store(curGID())

	n := 0
	for n < max {
		task, ok := g.ui.pop()
		if !ok {
			break
		}
		task()
		n++
	}
	return n
}

// Close stops the loops. Queued tasks that have not started are dropped.
// Close is idempotent.
func (g *Guard) Close() {
	if !g.closed.CompareAndSwap(false, true) {
		return
	}
	g.ui.stop()
	g.compositor.stop()
	g.wg.Wait()
}

func (g *Guard) loopFor(class Class) *loop {
	switch class {
	case ClassUI:
		return g.ui
	case ClassCompositor:
		return g.compositor
	default:
		panic(fmt.Sprintf("affinity: unknown thread class %d", int(class)))
	}
}

// run drives a dedicated loop. The goroutine is pinned to its OS thread for
// the guard's lifetime: engine-facing code may stash thread-local native
// state behind these calls.
func (g *Guard) run(l *loop) {
	defer g.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.gid.Store(curGID())

	for {
		select {
		case <-l.quit:
			return
		case <-l.signal:
			for {
				task, ok := l.pop()
				if !ok {
					break
				}
				task()
			}
		}
	}
}

// loop is one class's task queue plus the goroutine binding record. The
// queue is unbounded so producers (including the engine's callback threads)
// never block on a slow consumer.
type loop struct {
	class  Class
	gid    atomic.Uint64
	mu     sync.Mutex
	tasks  []func()
	signal chan struct{}
	quit   chan struct{}
	once   sync.Once
}

func newLoop(class Class) *loop {
	return &loop{
		class:  class,
		signal: make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
}

func (l *loop) push(task func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (l *loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) == 0 {
		return nil, false
	}
	task := l.tasks[0]
	l.tasks = l.tasks[1:]
	return task, true
}

func (l *loop) stop() {
	l.once.Do(func() { close(l.quit) })
}

// curGID extracts the running goroutine's id from the stack header
// ("goroutine 123 [running]:"). The runtime offers no direct accessor;
// this is only used for affinity bookkeeping, never for scheduling.
func curGID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
