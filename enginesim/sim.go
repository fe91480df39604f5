package enginesim

import (
	"context"
	"fmt"
	"sync"
	"time"

	browserbridge "github.com/embedkit/browser-bridge"
)

// maxLoopTasks bounds one DoMessageLoopWork slice, mirroring the bounded
// pump contract of the embedding API.
const maxLoopTasks = 32

// DefaultFrameInterval is the simulated compositor's paint cadence.
const DefaultFrameInterval = 16 * time.Millisecond

// Options configures the simulator.
type Options struct {
	// StartError, when set, is returned by Start. Simulates missing engine
	// resources.
	StartError error

	// LoadDelay separates the load-start and load-end events of each
	// navigation. Zero means both arrive on consecutive pump steps.
	LoadDelay time.Duration

	// FrameInterval is the compositor's paint cadence. Zero means
	// DefaultFrameInterval.
	FrameInterval time.Duration
}

// Engine is the simulated engine. It satisfies the embedding API's Engine
// interface.
type Engine struct {
	opts Options

	mu       sync.Mutex
	started  bool
	stopped  bool
	tasks    []func()
	browsers []*Browser
}

// New creates a simulator. It does nothing until Start.
func New(opts Options) *Engine {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	return &Engine{opts: opts}
}

// Start brings the simulated process tree up.
func (e *Engine) Start(browserbridge.StartConfig) error {
	if e.opts.StartError != nil {
		return e.opts.StartError
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started && !e.stopped {
		return fmt.Errorf("enginesim: already started")
	}
	e.started = true
	e.stopped = false
	return nil
}

// Stop tears the simulated process tree down. Browsers still open are
// force-closed with CloseEngineShutdown.
func (e *Engine) Stop(context.Context) error {
	e.mu.Lock()
	leftover := e.browsers
	e.browsers = nil
	e.stopped = true
	e.mu.Unlock()

	for _, b := range leftover {
		b.finish(browserbridge.CloseEngineShutdown)
	}
	return nil
}

// DoMessageLoopWork drains one bounded slice of the internal task queue.
// Lifecycle events (load progress, close confirmations) only fire here, so
// a host that stops pumping starves them, just like a real engine.
func (e *Engine) DoMessageLoopWork() {
	for i := 0; i < maxLoopTasks; i++ {
		e.mu.Lock()
		if len(e.tasks) == 0 {
			e.mu.Unlock()
			return
		}
		task := e.tasks[0]
		e.tasks = e.tasks[1:]
		e.mu.Unlock()
		task()
	}
}

// CreateBrowser allocates a simulated browsing context and starts its
// compositor goroutine.
func (e *Engine) CreateBrowser(opts browserbridge.BrowserOptions, sink browserbridge.FrameSink, events browserbridge.BrowserEvents) (browserbridge.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || e.stopped {
		return nil, fmt.Errorf("enginesim: engine not running")
	}

	b := &Browser{
		eng:    e,
		sink:   sink,
		events: events,
		size:   opts.Viewport,
		url:    opts.URL,
		stop:   make(chan struct{}),
	}
	e.browsers = append(e.browsers, b)

	if opts.URL != "" {
		b.scheduleLoad(opts.URL)
	}
	go b.composite(e.opts.FrameInterval)
	return b, nil
}

// Last returns the most recently created browsing context. Test helper.
func (e *Engine) Last() *Browser {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.browsers) == 0 {
		return nil
	}
	return e.browsers[len(e.browsers)-1]
}

// post queues work for the next DoMessageLoopWork slice.
func (e *Engine) post(task func()) {
	e.mu.Lock()
	e.tasks = append(e.tasks, task)
	e.mu.Unlock()
}

// forget drops b from the open set once it has finished.
func (e *Engine) forget(b *Browser) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, cur := range e.browsers {
		if cur == b {
			e.browsers = append(e.browsers[:i], e.browsers[i+1:]...)
			return
		}
	}
}
