package job

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/imazen-go/imageflow/config"
	"github.com/imazen-go/imageflow/engine"
	"github.com/imazen-go/imageflow/graph"
)

// ErrQueueFull is returned by Submit when the async queue has no room,
// the counterpart of the teacher's apperrors.ErrWorkerPoolFull.
var ErrQueueFull = errors.New("job: queue full")

// Request is one unit of async work: run a fully-built graph against a
// Job Context, reporting the outcome on ResultCh if non-nil
// (fire-and-forget otherwise). This plays the role of the teacher's
// core.Job, generalized from a linear Source+Steps pipeline to a graph
// build against an already-populated Job Context.
type Request struct {
	ID      string
	Ctx     *Context
	Graph   *graph.Graph
	ResultCh chan<- Result
}

// Result reports a Request's outcome.
type Result struct {
	ID  string
	Err error
}

// Manager owns the async worker pool that drains submitted Requests
// through the graph engine, adapted field-for-field from the teacher's
// core.Processor (jobQueue chan, sync.WaitGroup, sync.Once-gated Start,
// shutdown-channel-gated Stop, one goroutine per worker slot).
type Manager struct {
	cfg config.Config
	eng *engine.Engine

	jobQueue chan Request
	wg       sync.WaitGroup
	once     sync.Once
	shutdown chan struct{}

	processedCount int64
	errorCount     int64
}

// NewManager creates a Manager. Call Start before Submit; call Stop when
// done to drain and join all workers.
func NewManager(cfg config.Config) *Manager {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Manager{
		cfg:      cfg,
		eng:      engine.New(cfg),
		jobQueue: make(chan Request, queueSize),
		shutdown: make(chan struct{}),
	}
}

// WithHooks attaches engine.Hook observers (e.g. hooks.LoggingHook,
// hooks.MetricsHook) that fire around every node's Execute call. Call
// before Start/Run; not safe to call concurrently with an in-flight job.
func (m *Manager) WithHooks(h ...engine.Hook) *Manager {
	m.eng.WithHooks(h...)
	return m
}

// Start launches the worker pool. Idempotent.
func (m *Manager) Start() {
	m.once.Do(func() {
		workerCount := m.cfg.WorkerCount
		if workerCount <= 0 {
			workerCount = runtime.NumCPU()
		}
		for i := 0; i < workerCount; i++ {
			m.wg.Add(1)
			go m.worker()
		}
	})
}

// Stop closes the shutdown signal and waits for every in-flight request to
// finish. Queued-but-not-started requests are abandoned.
func (m *Manager) Stop() {
	close(m.shutdown)
	m.wg.Wait()
}

// Run is the synchronous API: executes g against jobCtx on the calling
// goroutine and returns once the engine is done, the counterpart of the
// teacher's Processor.Process.
func (m *Manager) Run(jobCtx *Context, g *graph.Graph) error {
	err := m.runOnce(jobCtx, g)
	if err != nil {
		atomic.AddInt64(&m.errorCount, 1)
		jobCtx.Errors().Record(err)
	} else {
		atomic.AddInt64(&m.processedCount, 1)
	}
	return err
}

// Submit enqueues req for async execution. Returns ErrQueueFull if the
// queue has no room, the same non-blocking-send contract as the
// teacher's Processor.Submit.
func (m *Manager) Submit(req Request) error {
	select {
	case m.jobQueue <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.shutdown:
			return
		case req, ok := <-m.jobQueue:
			if !ok {
				return
			}
			m.processRequest(req)
		}
	}
}

func (m *Manager) processRequest(req Request) {
	err := m.runOnce(req.Ctx, req.Graph)
	if err != nil {
		atomic.AddInt64(&m.errorCount, 1)
		req.Ctx.Errors().Record(err)
	} else {
		atomic.AddInt64(&m.processedCount, 1)
	}
	if req.ResultCh != nil {
		req.ResultCh <- Result{ID: req.ID, Err: err}
	}
}

// runOnce enforces the per-job timeout (config.JobTimeout) around one
// engine.Run call, the same per-job context.WithTimeout wrapping the
// teacher's processJob applies. Unlike processJob's runWithRetry, a
// failed run is never retried here: I/O handles are taken at most once
// (OpenInput/OpenOutput mark themselves consumed), so re-running the same
// graph against the same Context would fail on the second attempt's first
// Decode/Encode node regardless of whether the underlying fault was
// transient.
func (m *Manager) runOnce(jobCtx *Context, g *graph.Graph) error {
	ctx := jobCtx.ctx
	if m.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.JobTimeout)
		defer cancel()
	}
	return m.eng.Run(&timeoutEnv{Context: jobCtx, ctx: ctx}, g)
}

// timeoutEnv overrides Context()'s deadline without copying the Job
// Context's mutex-guarded handle table, so a per-job timeout never
// produces two mutexes guarding the same map.
type timeoutEnv struct {
	*Context
	ctx context.Context
}

func (t *timeoutEnv) Context() context.Context { return t.ctx }

// ProcessedCount returns the total number of successfully executed graphs.
func (m *Manager) ProcessedCount() int64 { return atomic.LoadInt64(&m.processedCount) }

// ErrorCount returns the total number of graph executions that returned
// an error.
func (m *Manager) ErrorCount() int64 { return atomic.LoadInt64(&m.errorCount) }

// PassCap returns the configured planning-pass cap,
// config.MaxPlanningPasses, or 6 when that is not positive.
func (m *Manager) PassCap() int {
	if m.cfg.MaxPlanningPasses <= 0 {
		return 6
	}
	return m.cfg.MaxPlanningPasses
}
